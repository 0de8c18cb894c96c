// Package memory provides in-memory implementations of the storage
// interfaces. Used by tests and single-process embeddings of the engine.
// The atomicity contract is the same as the Postgres adapters': increments
// and the badge latch flip happen under a mutex, never as unguarded
// read-modify-write from the caller's side.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
)

type eventKey struct {
	userID string
	id     string
}

// EventStore is an append-only in-memory event log.
type EventStore struct {
	mu     sync.Mutex
	seq    int64
	events []*v1.ChoiceEvent
	byKey  map[eventKey]struct{}
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{byKey: make(map[eventKey]struct{})}
}

// AppendEvent implements storage.EventStore.
func (s *EventStore) AppendEvent(_ context.Context, event *v1.ChoiceEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.IngestedAt.IsZero() {
		event.IngestedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{userID: event.UserID, id: event.ID}
	if _, exists := s.byKey[key]; exists {
		return storage.ErrDuplicate
	}

	s.seq++
	event.IngestSeq = s.seq

	stored := *event
	s.events = append(s.events, &stored)
	s.byKey[key] = struct{}{}
	return nil
}

// RetrieveByDecisionAfterCursor implements storage.EventStore.
func (s *EventStore) RetrieveByDecisionAfterCursor(
	_ context.Context,
	key analytics.DecisionKey,
	cursor int64,
	limit int,
) ([]*v1.ChoiceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*v1.ChoiceEvent
	for _, evt := range s.events {
		if evt.IngestSeq <= cursor {
			continue
		}
		if evt.StoryID != key.StoryID ||
			evt.ChapterID != key.ChapterID ||
			evt.DecisionPointID != key.DecisionPointID {
			continue
		}
		copied := *evt
		result = append(result, &copied)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type tallyRecord struct {
	selectionCount      int64
	previousWindowCount int64
	updatedAt           time.Time
}

// TallyStore is an in-memory materialized tally table.
type TallyStore struct {
	mu      sync.Mutex
	tallies map[analytics.ChoiceKey]*tallyRecord
}

// NewTallyStore creates an empty in-memory tally store.
func NewTallyStore() *TallyStore {
	return &TallyStore{tallies: make(map[analytics.ChoiceKey]*tallyRecord)}
}

// IncrementTally implements storage.TallyStore.
func (s *TallyStore) IncrementTally(_ context.Context, key analytics.ChoiceKey) (analytics.TallyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tallies[key]
	if !ok {
		rec = &tallyRecord{}
		s.tallies[key] = rec
	}
	rec.selectionCount++
	rec.updatedAt = time.Now().UTC()

	return rec.state(key), nil
}

// GetTally implements storage.TallyStore.
func (s *TallyStore) GetTally(_ context.Context, key analytics.ChoiceKey) (analytics.TallyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tallies[key]
	if !ok {
		return analytics.TallyState{Key: key}, nil
	}
	return rec.state(key), nil
}

// TalliesForDecision implements storage.TallyStore.
func (s *TallyStore) TalliesForDecision(_ context.Context, key analytics.DecisionKey) ([]analytics.TallyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []analytics.TallyState
	for k, rec := range s.tallies {
		if k.Decision() == key {
			results = append(results, rec.state(k))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].SelectionCount != results[j].SelectionCount {
			return results[i].SelectionCount > results[j].SelectionCount
		}
		return results[i].Key.ChoiceID < results[j].Key.ChoiceID
	})
	return results, nil
}

// SnapshotWindow implements storage.TallyStore.
func (s *TallyStore) SnapshotWindow(_ context.Context, key analytics.ChoiceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.tallies[key]; ok {
		rec.previousWindowCount = rec.selectionCount
		rec.updatedAt = time.Now().UTC()
	}
	return nil
}

// SnapshotAll implements storage.TallyStore.
func (s *TallyStore) SnapshotAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, rec := range s.tallies {
		rec.previousWindowCount = rec.selectionCount
		rec.updatedAt = now
	}
	return nil
}

func (r *tallyRecord) state(key analytics.ChoiceKey) analytics.TallyState {
	return analytics.TallyState{
		Key:                 key,
		SelectionCount:      r.selectionCount,
		PreviousWindowCount: r.previousWindowCount,
		UpdatedAt:           r.updatedAt,
	}
}

type completionKey struct {
	userID  string
	storyID string
}

type completionRecord struct {
	totalEndings        int
	endings             map[string]struct{}
	pathsCompletedCount int64
	badgeAwarded        bool
	updatedAt           time.Time
}

// CompletionStore is an in-memory path completion table.
type CompletionStore struct {
	mu      sync.Mutex
	records map[completionKey]*completionRecord
}

// NewCompletionStore creates an empty in-memory completion store.
func NewCompletionStore() *CompletionStore {
	return &CompletionStore{records: make(map[completionKey]*completionRecord)}
}

// RecordCompletion implements storage.CompletionStore. The whole update,
// including the badge latch check-and-flip, happens under one lock so that
// exactly one concurrent caller observes the flip.
func (s *CompletionStore) RecordCompletion(
	_ context.Context,
	userID, storyID, endingID string,
	totalEndings int,
) (analytics.PathCompletion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := completionKey{userID: userID, storyID: storyID}
	rec, ok := s.records[key]
	if !ok {
		rec = &completionRecord{endings: make(map[string]struct{})}
		s.records[key] = rec
	}

	rec.pathsCompletedCount++
	rec.endings[endingID] = struct{}{}
	if totalEndings > 0 {
		rec.totalEndings = totalEndings
	}
	rec.updatedAt = time.Now().UTC()

	flipped := false
	if !rec.badgeAwarded && rec.totalEndings > 0 && len(rec.endings) >= rec.totalEndings {
		rec.badgeAwarded = true
		flipped = true
	}

	return rec.completion(userID, storyID), flipped, nil
}

// GetCompletion implements storage.CompletionStore.
func (s *CompletionStore) GetCompletion(_ context.Context, userID, storyID string) (analytics.PathCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[completionKey{userID: userID, storyID: storyID}]
	if !ok {
		return analytics.PathCompletion{UserID: userID, StoryID: storyID}, nil
	}
	return rec.completion(userID, storyID), nil
}

func (r *completionRecord) completion(userID, storyID string) analytics.PathCompletion {
	endings := make([]string, 0, len(r.endings))
	for id := range r.endings {
		endings = append(endings, id)
	}
	sort.Strings(endings)

	return analytics.PathCompletion{
		UserID:                 userID,
		StoryID:                storyID,
		TotalEndings:           r.totalEndings,
		DiscoveredEndings:      endings,
		PathsCompletedCount:    r.pathsCompletedCount,
		AllEndingsBadgeAwarded: r.badgeAwarded,
		UpdatedAt:              r.updatedAt,
	}
}
