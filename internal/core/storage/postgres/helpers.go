package postgres

import (
	"errors"
	"fmt"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/lib/pq"
)

// Postgres error codes that mark a retryable concurrency conflict rather
// than a hard storage failure.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps a driver error onto the engine's error taxonomy:
// serialization failures and deadlocks become ErrConflict (the Aggregator
// and Evaluator retry those, bounded), everything else becomes ErrStorage.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, apperrors.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorage, err)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into a ChoiceEvent.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.ChoiceEvent, error) {
	var evt v1.ChoiceEvent
	err := row.Scan(
		&evt.IngestSeq,
		&evt.ID,
		&evt.UserID,
		&evt.StoryID,
		&evt.ChapterID,
		&evt.DecisionPointID,
		&evt.ChoiceID,
		&evt.ChoiceText,
		&evt.OccurredAt,
		&evt.IngestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}
	return &evt, nil
}
