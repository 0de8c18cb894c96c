// Package projection is the read side of the engine: heatmaps and
// completion status. All operations are pure reads against materialized
// state and never trigger recomputation or writes.
package projection

import (
	"context"
	"fmt"

	"github.com/inkwell-labs/storypulse/internal/completion"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
)

// Service implements the query surface.
type Service struct {
	tallies   storage.TallyStore
	evaluator *completion.Evaluator
	policy    analytics.TrendPolicy
}

// NewService creates a new projection service.
func NewService(tallies storage.TallyStore, evaluator *completion.Evaluator, policy analytics.TrendPolicy) *Service {
	if tallies == nil {
		panic("projection: tally store must not be nil")
	}
	if evaluator == nil {
		panic("projection: evaluator must not be nil")
	}
	return &Service{tallies: tallies, evaluator: evaluator, policy: policy}
}

// GetHeatmap returns one entry per choice observed at the decision point,
// ordered by selection count descending. Percentages across the entries sum
// to 100 (within rounding) whenever at least one event exists.
func (s *Service) GetHeatmap(ctx context.Context, key analytics.DecisionKey) (*HeatmapResponse, error) {
	if key.StoryID == "" || key.ChapterID == "" || key.DecisionPointID == "" {
		return nil, fmt.Errorf("%w: story_id, chapter_id and decision_point_id are required", apperrors.ErrValidation)
	}

	tallies, err := s.tallies.TalliesForDecision(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("heatmap query: %w", err)
	}

	var total int64
	for _, t := range tallies {
		total += t.SelectionCount
	}

	entries := make([]HeatmapEntry, 0, len(tallies))
	for _, t := range tallies {
		entries = append(entries, HeatmapEntry{
			ChoiceID:       t.Key.ChoiceID,
			SelectionCount: t.SelectionCount,
			Percentage:     analytics.Share(t.SelectionCount, total),
			Trend:          s.policy.Classify(t.SelectionCount, t.PreviousWindowCount),
		})
	}

	return &HeatmapResponse{
		StoryID:         key.StoryID,
		ChapterID:       key.ChapterID,
		DecisionPointID: key.DecisionPointID,
		TotalSelections: total,
		Entries:         entries,
	}, nil
}

// GetCompletion returns the reader's completion status for a story.
func (s *Service) GetCompletion(ctx context.Context, userID, storyID string) (completion.Status, error) {
	return s.evaluator.Status(ctx, userID, storyID)
}
