package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
	"github.com/shopspring/decimal"
)

const (
	// maxConflictRetries bounds the internal retry loop on ErrConflict.
	// The increment is idempotent-at-the-store (a single atomic upsert),
	// so re-invoking after a serialization failure is safe.
	maxConflictRetries = 3

	// recomputeBatchSize is the page size for folding over the event log.
	recomputeBatchSize = 5000
)

// Aggregator maintains DecisionTally state incrementally and supports full
// recomputation from the event log. It is the only writer of tallies; all
// tally mutation flows through Apply and the snapshot calls.
type Aggregator struct {
	events  storage.EventStore
	tallies storage.TallyStore
	policy  analytics.TrendPolicy
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(events storage.EventStore, tallies storage.TallyStore, policy analytics.TrendPolicy) *Aggregator {
	if events == nil {
		panic("aggregation: event store must not be nil")
	}
	if tallies == nil {
		panic("aggregation: tally store must not be nil")
	}
	return &Aggregator{events: events, tallies: tallies, policy: policy}
}

// Policy returns the trend classification policy in effect.
func (a *Aggregator) Policy() analytics.TrendPolicy {
	return a.policy
}

// Apply folds one event into its tally, creating the tally if absent.
// Conflicts are retried up to maxConflictRetries before surfacing; the
// caller may then safely retry the whole operation.
func (a *Aggregator) Apply(ctx context.Context, event *v1.ChoiceEvent) (analytics.TallyState, error) {
	key := analytics.ChoiceKey{
		StoryID:         event.StoryID,
		ChapterID:       event.ChapterID,
		DecisionPointID: event.DecisionPointID,
		ChoiceID:        event.ChoiceID,
	}

	var lastErr error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		state, err := a.tallies.IncrementTally(ctx, key)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return analytics.TallyState{}, fmt.Errorf("apply event %s: %w", event.ID, err)
		}

		lastErr = err
		slog.Warn("[Aggregator] Increment conflict, retrying",
			"event_id", event.ID,
			"attempt", attempt,
			"max_attempts", maxConflictRetries)
	}

	return analytics.TallyState{}, fmt.Errorf("apply event %s: retries exhausted: %w", event.ID, lastErr)
}

// PercentageOf returns key's share of all selections at its decision point,
// in [0, 100]. An empty decision point yields 0, not an error.
func (a *Aggregator) PercentageOf(ctx context.Context, key analytics.ChoiceKey) (decimal.Decimal, error) {
	tallies, err := a.tallies.TalliesForDecision(ctx, key.Decision())
	if err != nil {
		return decimal.Zero, fmt.Errorf("percentage of %v: %w", key, err)
	}

	var count, total int64
	for _, t := range tallies {
		total += t.SelectionCount
		if t.Key.ChoiceID == key.ChoiceID {
			count = t.SelectionCount
		}
	}
	return analytics.Share(count, total), nil
}

// ClassifyTrend compares key's current count to its previous window count.
func (a *Aggregator) ClassifyTrend(ctx context.Context, key analytics.ChoiceKey) (analytics.Trend, error) {
	state, err := a.tallies.GetTally(ctx, key)
	if err != nil {
		return analytics.TrendStable, fmt.Errorf("classify trend of %v: %w", key, err)
	}
	return a.policy.Classify(state.SelectionCount, state.PreviousWindowCount), nil
}

// SnapshotWindow records the current count as the trend baseline for one key.
func (a *Aggregator) SnapshotWindow(ctx context.Context, key analytics.ChoiceKey) error {
	return a.tallies.SnapshotWindow(ctx, key)
}

// SnapshotAll records the current count as the trend baseline for every
// tally. Invoked by the scheduler at its configured cadence.
func (a *Aggregator) SnapshotAll(ctx context.Context) error {
	return a.tallies.SnapshotAll(ctx)
}

// Recompute rebuilds key's selection count from the event log from scratch.
// Used for repair and audit: because the tally is a pure fold over the log,
// the result must equal the incrementally maintained value exactly. The
// previous window count is carried over from the live tally; it is a
// snapshot artifact, not derivable from events.
func (a *Aggregator) Recompute(ctx context.Context, key analytics.ChoiceKey) (analytics.TallyState, error) {
	live, err := a.tallies.GetTally(ctx, key)
	if err != nil {
		return analytics.TallyState{}, fmt.Errorf("recompute %v: read live tally: %w", key, err)
	}

	var (
		count  int64
		cursor int64
	)
	for {
		events, err := a.events.RetrieveByDecisionAfterCursor(ctx, key.Decision(), cursor, recomputeBatchSize)
		if err != nil {
			return analytics.TallyState{}, fmt.Errorf("recompute %v: %w", key, err)
		}
		if len(events) == 0 {
			break
		}

		for _, evt := range events {
			if evt.ChoiceID == key.ChoiceID {
				count++
			}
		}

		cursor = events[len(events)-1].IngestSeq
		if len(events) < recomputeBatchSize {
			break
		}
	}

	slog.Debug("[Aggregator] Recomputed tally",
		"story_id", key.StoryID,
		"choice_id", key.ChoiceID,
		"selection_count", count)

	return analytics.TallyState{
		Key:                 key,
		SelectionCount:      count,
		PreviousWindowCount: live.PreviousWindowCount,
		UpdatedAt:           live.UpdatedAt,
	}, nil
}
