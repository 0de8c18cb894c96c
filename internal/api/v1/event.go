package v1

import (
	"fmt"
	"time"

	apperrors "github.com/inkwell-labs/storypulse/internal/core/errors"
)

// ChoiceEvent records one reader selecting one choice at one decision point.
// Events are append-only: corrections are modeled as new events, never as
// updates or deletes of existing rows.
type ChoiceEvent struct {
	// ID uniquely identifies the event. Clients may supply their own ID for
	// idempotent retries; the store assigns a UUID when it is empty.
	ID string `json:"id"`

	// UserID identifies the reader who made the selection.
	UserID string `json:"user_id"`

	// StoryID / ChapterID / DecisionPointID locate the branching moment.
	StoryID         string `json:"story_id"`
	ChapterID       string `json:"chapter_id"`
	DecisionPointID string `json:"decision_point_id"`

	// ChoiceID identifies the selected option.
	ChoiceID string `json:"choice_id"`

	// ChoiceText is a display snapshot. The upstream choice text may change
	// without invalidating history, so the event carries its own copy.
	ChoiceText string `json:"choice_text,omitempty"`

	// OccurredAt is when the reader made the selection (client-side clock,
	// monotonic per user within a session, not globally monotonic).
	// Assigned at append when absent.
	OccurredAt time.Time `json:"occurred_at"`

	// IngestedAt is when the engine received the event (server-side clock).
	IngestedAt time.Time `json:"ingested_at"`

	// IngestSeq is a monotonic sequence number assigned on append.
	// It provides strict total ordering for recompute pagination.
	// Set by the store (BIGSERIAL), not exposed in the public API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures all required identifiers are present.
// Failures wrap apperrors.ErrValidation so callers can map them to HTTP 400.
func (e *ChoiceEvent) Validate() error {
	required := []struct {
		name, value string
	}{
		{"user_id", e.UserID},
		{"story_id", e.StoryID},
		{"chapter_id", e.ChapterID},
		{"decision_point_id", e.DecisionPointID},
		{"choice_id", e.ChoiceID},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", apperrors.ErrValidation, f.name)
		}
	}
	return nil
}

// PathEnding records one reader reaching one terminal node of a story.
type PathEnding struct {
	UserID   string `json:"user_id"`
	StoryID  string `json:"story_id"`
	EndingID string `json:"ending_id"`
}

// Validate ensures all required identifiers are present.
func (p *PathEnding) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", apperrors.ErrValidation)
	}
	if p.StoryID == "" {
		return fmt.Errorf("%w: story_id is required", apperrors.ErrValidation)
	}
	if p.EndingID == "" {
		return fmt.Errorf("%w: ending_id is required", apperrors.ErrValidation)
	}
	return nil
}
