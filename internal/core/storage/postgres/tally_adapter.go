package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	"github.com/inkwell-labs/storypulse/internal/core/partition"
)

// TallyAdapter implements storage.TallyStore using PostgreSQL.
// The increment is a single atomic upsert: the database computes
// selection_count + 1 under the row lock, so concurrent readers selecting
// the same choice never lose updates.
type TallyAdapter struct {
	db *sql.DB
}

// NewTallyAdapter creates a TallyAdapter sharing the given connection.
func NewTallyAdapter(db *sql.DB) *TallyAdapter {
	return &TallyAdapter{db: db}
}

// IncrementTally atomically increments the selection count for key,
// creating the tally lazily on first selection.
func (a *TallyAdapter) IncrementTally(ctx context.Context, key analytics.ChoiceKey) (analytics.TallyState, error) {
	state := analytics.TallyState{Key: key}

	err := a.db.QueryRowContext(ctx, queryIncrementTally,
		partition.For(key.StoryID),
		key.StoryID,
		key.ChapterID,
		key.DecisionPointID,
		key.ChoiceID,
		time.Now().UTC(),
	).Scan(&state.SelectionCount, &state.PreviousWindowCount, &state.UpdatedAt)
	if err != nil {
		return analytics.TallyState{}, classify("increment tally", err)
	}

	return state, nil
}

// GetTally returns the current state for key. A tally that has never been
// incremented returns the zero state, not an error.
func (a *TallyAdapter) GetTally(ctx context.Context, key analytics.ChoiceKey) (analytics.TallyState, error) {
	state := analytics.TallyState{Key: key}

	err := a.db.QueryRowContext(ctx, queryGetTally,
		key.StoryID, key.ChapterID, key.DecisionPointID, key.ChoiceID,
	).Scan(&state.SelectionCount, &state.PreviousWindowCount, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return analytics.TallyState{Key: key}, nil
	}
	if err != nil {
		return analytics.TallyState{}, classify("get tally", err)
	}

	return state, nil
}

// TalliesForDecision returns all tallies at key's decision point, ordered by
// selection count descending with choice ID as the tiebreak.
func (a *TallyAdapter) TalliesForDecision(ctx context.Context, key analytics.DecisionKey) ([]analytics.TallyState, error) {
	rows, err := a.db.QueryContext(ctx, queryTalliesForDecision,
		key.StoryID, key.ChapterID, key.DecisionPointID)
	if err != nil {
		return nil, classify("query tallies for decision", err)
	}
	defer rows.Close()

	var results []analytics.TallyState
	for rows.Next() {
		state := analytics.TallyState{Key: analytics.ChoiceKey{
			StoryID:         key.StoryID,
			ChapterID:       key.ChapterID,
			DecisionPointID: key.DecisionPointID,
		}}
		if err := rows.Scan(
			&state.Key.ChoiceID,
			&state.SelectionCount,
			&state.PreviousWindowCount,
			&state.UpdatedAt,
		); err != nil {
			return nil, classify("scan tally row", err)
		}
		results = append(results, state)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterate tally rows", err)
	}

	return results, nil
}

// SnapshotWindow sets previous_window_count = selection_count for one key.
// Snapshotting a tally that does not exist yet is a no-op.
func (a *TallyAdapter) SnapshotWindow(ctx context.Context, key analytics.ChoiceKey) error {
	_, err := a.db.ExecContext(ctx, querySnapshotWindow,
		key.StoryID, key.ChapterID, key.DecisionPointID, key.ChoiceID,
		time.Now().UTC())
	if err != nil {
		return classify("snapshot window", err)
	}
	return nil
}

// SnapshotAll sets previous_window_count = selection_count for every tally.
// Called by the trend scheduler at its configured cadence.
func (a *TallyAdapter) SnapshotAll(ctx context.Context) error {
	result, err := a.db.ExecContext(ctx, querySnapshotAll, time.Now().UTC())
	if err != nil {
		return classify("snapshot all windows", err)
	}

	if affected, err := result.RowsAffected(); err == nil {
		slog.Info("[TallyAdapter] Trend windows snapshotted", "tallies", affected)
	}
	return nil
}
