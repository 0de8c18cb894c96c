package storage

import (
	"context"
	"errors"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
)

// ErrDuplicate is returned when an event with the same (user_id, id) already
// exists. Client-supplied IDs make retries idempotent: the duplicate append
// is reported, never double-counted.
var ErrDuplicate = errors.New("event already exists")

// EventStore is the append-only log of choice events.
//
// Contract: an event is visible to subsequent reads as soon as AppendEvent
// returns; there is no eventual-consistency window at the store boundary.
// Downstream tally aggregation may lag; RetrieveByDecisionAfterCursor exists
// so the Aggregator can always rebuild a tally from the log.
type EventStore interface {
	// AppendEvent durably appends one event. Assigns ID and OccurredAt when
	// absent, validates required identifiers before any write, and populates
	// event.IngestSeq on success. Performs no retries itself.
	AppendEvent(ctx context.Context, event *v1.ChoiceEvent) error

	// RetrieveByDecisionAfterCursor fetches events for one decision point
	// after a cursor (ingest_seq) in strict total order. Restartable: the
	// caller pages by passing the last IngestSeq seen. cursor=0 means
	// "from the beginning". Used for recompute/audit, not the hot query path.
	RetrieveByDecisionAfterCursor(
		ctx context.Context,
		key analytics.DecisionKey,
		cursor int64,
		limit int,
	) ([]*v1.ChoiceEvent, error)
}

// TallyStore holds the materialized per-choice selection counts.
//
// All mutation goes through IncrementTally and the snapshot calls, never
// through ad hoc updates elsewhere. That single-writer-path discipline is
// what makes Aggregator.Recompute a valid audit tool.
type TallyStore interface {
	// IncrementTally atomically increments the selection count for key,
	// creating the tally lazily on first selection, and returns the updated
	// state. Implementations must use an atomic upsert or an equivalent
	// isolated increment; a naive read-then-write is a correctness bug.
	// Conflicts surface as errors wrapping apperrors.ErrConflict.
	IncrementTally(ctx context.Context, key analytics.ChoiceKey) (analytics.TallyState, error)

	// GetTally returns the current state for key. A tally that has never
	// been incremented returns the zero state (lazily-created semantics),
	// not an error.
	GetTally(ctx context.Context, key analytics.ChoiceKey) (analytics.TallyState, error)

	// TalliesForDecision returns all tallies sharing key's decision point,
	// ordered by selection count descending (choice ID ascending tiebreak).
	// An unseen decision point returns an empty slice.
	TalliesForDecision(ctx context.Context, key analytics.DecisionKey) ([]analytics.TallyState, error)

	// SnapshotWindow sets previous_window_count = selection_count for one key.
	SnapshotWindow(ctx context.Context, key analytics.ChoiceKey) error

	// SnapshotAll sets previous_window_count = selection_count for every
	// tally. Called by the trend scheduler at its configured cadence.
	SnapshotAll(ctx context.Context) error
}

// CompletionStore holds the per-reader, per-story path completion records.
type CompletionStore interface {
	// RecordCompletion adds endingID to the reader's discovered set (no-op
	// if already present), unconditionally increments the completed-runs
	// counter, stores totalEndings when positive, and evaluates the badge
	// latch in the same atomic unit. The returned bool reports whether this
	// call flipped the latch false→true; concurrent completions for the
	// same reader observe it true at most once.
	RecordCompletion(
		ctx context.Context,
		userID, storyID, endingID string,
		totalEndings int,
	) (analytics.PathCompletion, bool, error)

	// GetCompletion returns the reader's completion record for a story.
	// A reader with no completions returns the zero record, not an error.
	GetCompletion(ctx context.Context, userID, storyID string) (analytics.PathCompletion, error)
}
