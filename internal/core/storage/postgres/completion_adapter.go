package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-labs/storypulse/internal/core/analytics"
)

// CompletionAdapter implements storage.CompletionStore using PostgreSQL.
//
// RecordCompletion runs as one transaction: upsert of the completion row,
// set-insert of the discovered ending, then the conditional badge flip.
// The upsert's row lock serializes concurrent completions per (user, story),
// so the "set TRUE where currently FALSE" update succeeds for exactly one of
// them even when the final two missing endings arrive simultaneously.
type CompletionAdapter struct {
	db *sql.DB
}

// NewCompletionAdapter creates a CompletionAdapter sharing the given connection.
func NewCompletionAdapter(db *sql.DB) *CompletionAdapter {
	return &CompletionAdapter{db: db}
}

// RecordCompletion records one completed run ending in endingID and reports
// whether this call flipped the all-endings badge latch.
func (a *CompletionAdapter) RecordCompletion(
	ctx context.Context,
	userID, storyID, endingID string,
	totalEndings int,
) (analytics.PathCompletion, bool, error) {
	now := time.Now().UTC()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, queryUpsertCompletion,
		userID, storyID, totalEndings, now); err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: upsert row", err)
	}

	if _, err := tx.ExecContext(ctx, queryInsertDiscoveredEnding,
		userID, storyID, endingID, now); err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: insert ending", err)
	}

	result, err := tx.ExecContext(ctx, queryAwardBadge, userID, storyID, now)
	if err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: award badge", err)
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: check badge write", err)
	}

	record, err := a.readCompletion(ctx, tx, userID, storyID)
	if err != nil {
		return analytics.PathCompletion{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return analytics.PathCompletion{}, false, classify("record completion: commit", err)
	}

	if flipped > 0 {
		slog.Info("[CompletionAdapter] All-endings badge awarded",
			"user_id", userID,
			"story_id", storyID,
			"total_endings", record.TotalEndings)
	}

	return record, flipped > 0, nil
}

// GetCompletion returns the reader's completion record for a story.
// A reader with no completions returns the zero record, not an error.
func (a *CompletionAdapter) GetCompletion(ctx context.Context, userID, storyID string) (analytics.PathCompletion, error) {
	return a.readCompletion(ctx, a.db, userID, storyID)
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the read path is
// shared between GetCompletion and the RecordCompletion transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (a *CompletionAdapter) readCompletion(ctx context.Context, q querier, userID, storyID string) (analytics.PathCompletion, error) {
	record := analytics.PathCompletion{UserID: userID, StoryID: storyID}

	err := q.QueryRowContext(ctx, querySelectCompletion, userID, storyID).Scan(
		&record.TotalEndings,
		&record.PathsCompletedCount,
		&record.AllEndingsBadgeAwarded,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return analytics.PathCompletion{UserID: userID, StoryID: storyID}, nil
	}
	if err != nil {
		return analytics.PathCompletion{}, classify("read completion row", err)
	}

	rows, err := q.QueryContext(ctx, querySelectDiscoveredEndings, userID, storyID)
	if err != nil {
		return analytics.PathCompletion{}, classify("read discovered endings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var endingID string
		if err := rows.Scan(&endingID); err != nil {
			return analytics.PathCompletion{}, fmt.Errorf("failed to scan ending row: %w", err)
		}
		record.DiscoveredEndings = append(record.DiscoveredEndings, endingID)
	}
	if err := rows.Err(); err != nil {
		return analytics.PathCompletion{}, classify("iterate ending rows", err)
	}

	return record, nil
}
