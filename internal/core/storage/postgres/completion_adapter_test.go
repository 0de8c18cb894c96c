package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func completionRowColumns() []string {
	return []string{"total_endings", "paths_completed_count", "all_endings_badge_awarded", "updated_at"}
}

func TestCompletionAdapter_RecordCompletionFlipsBadge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewCompletionAdapter(db)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertCompletion)).
		WithArgs("reader-1", "story-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertDiscoveredEnding)).
		WithArgs("reader-1", "story-1", "ending-true", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryAwardBadge)).
		WithArgs("reader-1", "story-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCompletion)).
		WithArgs("reader-1", "story-1").
		WillReturnRows(sqlmock.NewRows(completionRowColumns()).
			AddRow(3, int64(4), true, now))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectDiscoveredEndings)).
		WithArgs("reader-1", "story-1").
		WillReturnRows(sqlmock.NewRows([]string{"ending_id"}).
			AddRow("ending-bitter").
			AddRow("ending-sweet").
			AddRow("ending-true"),
		).RowsWillBeClosed()
	mock.ExpectCommit()

	record, flipped, err := adapter.RecordCompletion(context.Background(), "reader-1", "story-1", "ending-true", 3)
	require.NoError(t, err)
	require.True(t, flipped)
	require.True(t, record.AllEndingsBadgeAwarded)
	require.Equal(t, 3, record.TotalEndings)
	require.Equal(t, int64(4), record.PathsCompletedCount)
	require.Equal(t, []string{"ending-bitter", "ending-sweet", "ending-true"}, record.DiscoveredEndings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionAdapter_RecordCompletionNoFlipWhenEndingsRemain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewCompletionAdapter(db)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertCompletion)).
		WithArgs("reader-1", "story-1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertDiscoveredEnding)).
		WithArgs("reader-1", "story-1", "ending-bitter", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryAwardBadge)).
		WithArgs("reader-1", "story-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectCompletion)).
		WithArgs("reader-1", "story-1").
		WillReturnRows(sqlmock.NewRows(completionRowColumns()).
			AddRow(3, int64(1), false, now))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectDiscoveredEndings)).
		WithArgs("reader-1", "story-1").
		WillReturnRows(sqlmock.NewRows([]string{"ending_id"}).
			AddRow("ending-bitter"),
		).RowsWillBeClosed()
	mock.ExpectCommit()

	record, flipped, err := adapter.RecordCompletion(context.Background(), "reader-1", "story-1", "ending-bitter", 3)
	require.NoError(t, err)
	require.False(t, flipped)
	require.False(t, record.AllEndingsBadgeAwarded)
	require.Equal(t, []string{"ending-bitter"}, record.DiscoveredEndings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionAdapter_RecordCompletionMapsDeadlockToConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewCompletionAdapter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertCompletion)).
		WithArgs("reader-1", "story-1", 3, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pgSerializationFailure)})
	mock.ExpectRollback()

	_, _, err = adapter.RecordCompletion(context.Background(), "reader-1", "story-1", "ending-true", 3)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionAdapter_GetCompletionZeroRecordWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewCompletionAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta(querySelectCompletion)).
		WithArgs("reader-9", "story-1").
		WillReturnRows(sqlmock.NewRows(completionRowColumns()))

	record, err := adapter.GetCompletion(context.Background(), "reader-9", "story-1")
	require.NoError(t, err)
	require.Equal(t, "reader-9", record.UserID)
	require.Equal(t, "story-1", record.StoryID)
	require.Zero(t, record.PathsCompletedCount)
	require.False(t, record.AllEndingsBadgeAwarded)
	require.Empty(t, record.DiscoveredEndings)
	require.NoError(t, mock.ExpectationsWereMet())
}
