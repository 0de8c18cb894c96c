// Package completion maintains per-reader path completion state and detects
// the "all endings discovered" transition exactly once.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
	"github.com/inkwell-labs/storypulse/internal/core/storage"
	"github.com/inkwell-labs/storypulse/internal/story"
	"github.com/shopspring/decimal"
)

// maxConflictRetries bounds the internal retry loop on ErrConflict.
// RecordPathCompletion is safe to re-invoke with the same logical event:
// the ending insert is a set-add and the latch flip is conditional.
const maxConflictRetries = 3

// StructureProvider supplies a story's known ending set.
// Satisfied by *story.Catalog and the story repositories.
type StructureProvider interface {
	Structure(ctx context.Context, storyID string) (*story.Structure, error)
}

// Result reports the outcome of recording one completed run.
type Result struct {
	UserID   string `json:"user_id"`
	StoryID  string `json:"story_id"`
	EndingID string `json:"ending_id"`

	// KnownEnding is false when the ending is not (yet) in the story's
	// registered structure. The run is still recorded; rejecting could
	// strand legitimate plays when structure changes after publication.
	KnownEnding bool `json:"known_ending"`

	TotalEndings        int   `json:"total_endings"`
	DiscoveredCount     int   `json:"discovered_count"`
	PathsCompletedCount int64 `json:"paths_completed_count"`

	// BadgeAwarded is the current latch state.
	BadgeAwarded bool `json:"badge_awarded"`

	// BadgeJustAwarded is true for exactly one call per (user, story): the
	// one whose update flipped the latch. External reward systems key off
	// this signal.
	BadgeJustAwarded bool `json:"badge_just_awarded"`
}

// Status is the read-side completion view served by the query surface.
type Status struct {
	UserID               string          `json:"user_id"`
	StoryID              string          `json:"story_id"`
	TotalEndings         int             `json:"total_endings"`
	DiscoveredCount      int             `json:"discovered_count"`
	CompletionPercentage decimal.Decimal `json:"completion_percentage"`
	PathsCompletedCount  int64           `json:"paths_completed_count"`
	BadgeAwarded         bool            `json:"badge_awarded"`
}

// Evaluator folds path completions into PathCompletion records. It is the
// only writer of completion state.
type Evaluator struct {
	store   storage.CompletionStore
	stories StructureProvider
}

// NewEvaluator creates an Evaluator over the given store and story source.
func NewEvaluator(store storage.CompletionStore, stories StructureProvider) *Evaluator {
	if store == nil {
		panic("completion: store must not be nil")
	}
	if stories == nil {
		panic("completion: structure provider must not be nil")
	}
	return &Evaluator{store: store, stories: stories}
}

// RecordPathCompletion records one completed run ending in endingID.
// The discovered-endings set grows monotonically; the completed-runs counter
// increments unconditionally (replays count); the badge latch flips at most
// once, on the call whose update first covers the known ending set.
func (e *Evaluator) RecordPathCompletion(ctx context.Context, userID, storyID, endingID string) (Result, error) {
	if userID == "" || storyID == "" || endingID == "" {
		return Result{}, fmt.Errorf("%w: user_id, story_id and ending_id are required", apperrors.ErrValidation)
	}

	totalEndings, known, err := e.resolveStructure(ctx, storyID, endingID)
	if err != nil {
		return Result{}, err
	}

	if !known {
		// Accepted and recorded: forward-compatible with endings added
		// after publication. Logged as a data-quality signal, not rejected.
		slog.Warn("[Evaluator] Recording ending not in story structure",
			"user_id", userID,
			"story_id", storyID,
			"ending_id", endingID,
			"data_quality", true)
	}

	var (
		record  analytics.PathCompletion
		flipped bool
		lastErr error
	)
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		record, flipped, err = e.store.RecordCompletion(ctx, userID, storyID, endingID, totalEndings)
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return Result{}, fmt.Errorf("record path completion: %w", err)
		}

		lastErr = err
		slog.Warn("[Evaluator] Completion conflict, retrying",
			"user_id", userID,
			"story_id", storyID,
			"attempt", attempt,
			"max_attempts", maxConflictRetries)
	}
	if lastErr != nil {
		return Result{}, fmt.Errorf("record path completion: retries exhausted: %w", lastErr)
	}

	return Result{
		UserID:              userID,
		StoryID:             storyID,
		EndingID:            endingID,
		KnownEnding:         known,
		TotalEndings:        record.TotalEndings,
		DiscoveredCount:     record.DiscoveredCount(),
		PathsCompletedCount: record.PathsCompletedCount,
		BadgeAwarded:        record.AllEndingsBadgeAwarded,
		BadgeJustAwarded:    flipped,
	}, nil
}

// Status returns the reader's completion view for a story. A story with
// zero known endings reports 0%, never NaN and never an error. The current
// catalog total takes precedence over the stored one, so an upward revision
// is visible immediately; the badge, once awarded, stays awarded regardless.
func (e *Evaluator) Status(ctx context.Context, userID, storyID string) (Status, error) {
	if userID == "" || storyID == "" {
		return Status{}, fmt.Errorf("%w: user_id and story_id are required", apperrors.ErrValidation)
	}

	record, err := e.store.GetCompletion(ctx, userID, storyID)
	if err != nil {
		return Status{}, fmt.Errorf("completion status: %w", err)
	}

	totalEndings := record.TotalEndings
	if s, err := e.stories.Structure(ctx, storyID); err == nil {
		totalEndings = s.TotalEndings()
	} else if !errors.Is(err, story.ErrUnknownStory) {
		return Status{}, fmt.Errorf("completion status: %w", err)
	}

	discovered := record.DiscoveredCount()
	pct := analytics.Share(int64(discovered), int64(totalEndings))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		// Discovered endings can exceed a downward-revised total.
		pct = decimal.NewFromInt(100)
	}

	return Status{
		UserID:               userID,
		StoryID:              storyID,
		TotalEndings:         totalEndings,
		DiscoveredCount:      discovered,
		CompletionPercentage: pct,
		PathsCompletedCount:  record.PathsCompletedCount,
		BadgeAwarded:         record.AllEndingsBadgeAwarded,
	}, nil
}

func (e *Evaluator) resolveStructure(ctx context.Context, storyID, endingID string) (int, bool, error) {
	s, err := e.stories.Structure(ctx, storyID)
	if errors.Is(err, story.ErrUnknownStory) {
		slog.Warn("[Evaluator] Completion for unregistered story",
			"story_id", storyID,
			"data_quality", true)
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve story structure: %w", err)
	}
	return s.TotalEndings(), s.KnownEnding(endingID), nil
}
