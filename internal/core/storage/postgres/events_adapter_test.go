package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func TestAdapter_AppendEvent(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		event          *v1.ChoiceEvent
		mockResult     func(mock sqlmock.Sqlmock, event *v1.ChoiceEvent)
		assertions     func(t *testing.T, event *v1.ChoiceEvent, err error)
		expectationsOK bool
	}{
		{
			name: "success sets ingest seq",
			event: &v1.ChoiceEvent{
				ID:              "evt-1",
				UserID:          "reader-1",
				StoryID:         "story-1",
				ChapterID:       "ch-3",
				DecisionPointID: "dp-1",
				ChoiceID:        "trust-stranger",
				ChoiceText:      "Trust the stranger",
				OccurredAt:      now,
				IngestedAt:      now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.ChoiceEvent) {
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WithArgs(
						event.ID,
						event.UserID,
						event.StoryID,
						event.ChapterID,
						event.DecisionPointID,
						event.ChoiceID,
						event.ChoiceText,
						event.OccurredAt,
						event.IngestedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}).AddRow(int64(42)))
			},
			assertions: func(t *testing.T, event *v1.ChoiceEvent, err error) {
				require.NoError(t, err)
				require.Equal(t, int64(42), event.IngestSeq)
			},
			expectationsOK: true,
		},
		{
			name: "duplicate maps to ErrDuplicate",
			event: &v1.ChoiceEvent{
				ID:              "evt-dup",
				UserID:          "reader-1",
				StoryID:         "story-1",
				ChapterID:       "ch-3",
				DecisionPointID: "dp-1",
				ChoiceID:        "trust-stranger",
				OccurredAt:      now,
				IngestedAt:      now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.ChoiceEvent) {
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WithArgs(
						event.ID,
						event.UserID,
						event.StoryID,
						event.ChapterID,
						event.DecisionPointID,
						event.ChoiceID,
						event.ChoiceText,
						event.OccurredAt,
						event.IngestedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}))
			},
			assertions: func(t *testing.T, event *v1.ChoiceEvent, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
				require.Equal(t, int64(0), event.IngestSeq)
			},
			expectationsOK: true,
		},
		{
			name: "validation error short-circuits",
			event: &v1.ChoiceEvent{
				ID:         "evt-bad",
				UserID:     "reader-1",
				StoryID:    "story-1",
				OccurredAt: now,
			},
			assertions: func(t *testing.T, event *v1.ChoiceEvent, err error) {
				require.ErrorIs(t, err, apperrors.ErrValidation)
			},
			expectationsOK: true,
		},
		{
			name: "missing id and timestamps are assigned",
			event: &v1.ChoiceEvent{
				UserID:          "reader-2",
				StoryID:         "story-1",
				ChapterID:       "ch-1",
				DecisionPointID: "dp-2",
				ChoiceID:        "run",
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.ChoiceEvent) {
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WithArgs(
						sqlmock.AnyArg(),
						event.UserID,
						event.StoryID,
						event.ChapterID,
						event.DecisionPointID,
						event.ChoiceID,
						event.ChoiceText,
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
					).
					WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}).AddRow(int64(7)))
			},
			assertions: func(t *testing.T, event *v1.ChoiceEvent, err error) {
				require.NoError(t, err)
				require.NotEmpty(t, event.ID)
				require.False(t, event.OccurredAt.IsZero())
				require.False(t, event.IngestedAt.IsZero())
				require.Equal(t, int64(7), event.IngestSeq)
			},
			expectationsOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.event)
			}

			err := adapter.AppendEvent(context.Background(), tc.event)
			tc.assertions(t, tc.event, err)

			if tc.expectationsOK {
				require.NoError(t, mock.ExpectationsWereMet())
			}
		})
	}
}

func TestAdapter_RetrieveByDecisionAfterCursor(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	ingestedAt := occurredAt.Add(2 * time.Second)

	key := analytics.DecisionKey{
		StoryID:         "story-1",
		ChapterID:       "ch-3",
		DecisionPointID: "dp-1",
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveByDecisionAfterCursor)).
		WithArgs(key.StoryID, key.ChapterID, key.DecisionPointID, int64(100), 2).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow(
				int64(101),
				"evt-101",
				"reader-1",
				"story-1",
				"ch-3",
				"dp-1",
				"trust-stranger",
				"Trust the stranger",
				occurredAt,
				ingestedAt,
			).
			AddRow(
				int64(102),
				"evt-102",
				"reader-2",
				"story-1",
				"ch-3",
				"dp-1",
				"run",
				"Run away",
				occurredAt.Add(time.Minute),
				ingestedAt.Add(time.Minute),
			),
		).RowsWillBeClosed()

	events, err := adapter.RetrieveByDecisionAfterCursor(context.Background(), key, 100, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-101", events[0].ID)
	require.Equal(t, int64(101), events[0].IngestSeq)
	require.Equal(t, "trust-stranger", events[0].ChoiceID)
	require.Equal(t, "evt-102", events[1].ID)
	require.Equal(t, int64(102), events[1].IngestSeq)
	require.Equal(t, "run", events[1].ChoiceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	mock.ExpectPrepare(regexp.QuoteMeta(queryAppendEvent)).WillBeClosed()
	stmtAppend, err := db.Prepare(queryAppendEvent)
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryRetrieveByDecisionAfterCursor)).WillBeClosed()
	stmtRetrieve, err := db.Prepare(queryRetrieveByDecisionAfterCursor)
	require.NoError(t, err)

	mock.ExpectClose().WillReturnError(dbCloseErr)

	adapter := &Adapter{
		db:                 db,
		stmtAppendEvent:    stmtAppend,
		stmtRetrieveByDecn: stmtRetrieve,
	}

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                 db,
		stmtAppendEvent:    mustPrepareStmt(t, db, mock, queryAppendEvent),
		stmtRetrieveByDecn: mustPrepareStmt(t, db, mock, queryRetrieveByDecisionAfterCursor),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func eventRowColumns() []string {
	return []string{
		"ingest_seq",
		"id",
		"user_id",
		"story_id",
		"chapter_id",
		"decision_point_id",
		"choice_id",
		"choice_text",
		"occurred_at",
		"ingested_at",
	}
}
