package analytics

import "time"

// DecisionKey identifies one branching moment in a chapter.
type DecisionKey struct {
	StoryID         string
	ChapterID       string
	DecisionPointID string
}

// ChoiceKey identifies one option at one decision point. This is the tally key.
type ChoiceKey struct {
	StoryID         string
	ChapterID       string
	DecisionPointID string
	ChoiceID        string
}

// Decision returns the decision point this choice belongs to.
func (k ChoiceKey) Decision() DecisionKey {
	return DecisionKey{
		StoryID:         k.StoryID,
		ChapterID:       k.ChapterID,
		DecisionPointID: k.DecisionPointID,
	}
}

// TallyState is the materialized selection count of one choice.
// It is a pure fold over the event log: recomputable from scratch at any
// time with an identical result.
type TallyState struct {
	Key ChoiceKey

	// SelectionCount is the total number of events observed for this key.
	SelectionCount int64

	// PreviousWindowCount is the count as of the last trend snapshot.
	PreviousWindowCount int64

	UpdatedAt time.Time
}

// PathCompletion is the per-reader, per-story completion record.
type PathCompletion struct {
	UserID  string
	StoryID string

	// TotalEndings is the count of distinct ending nodes known for the story
	// at the time of the last recorded completion. Supplied externally;
	// not derivable from events alone.
	TotalEndings int

	// DiscoveredEndings is the monotonically growing set of ending
	// identifiers the reader has reached.
	DiscoveredEndings []string

	// PathsCompletedCount counts completed runs. Replays keep incrementing
	// it, so it may exceed len(DiscoveredEndings).
	PathsCompletedCount int64

	// AllEndingsBadgeAwarded is a one-way latch: set exactly once, never unset,
	// even if TotalEndings is later revised upward.
	AllEndingsBadgeAwarded bool

	UpdatedAt time.Time
}

// DiscoveredCount returns the number of distinct endings discovered.
func (p PathCompletion) DiscoveredCount() int {
	return len(p.DiscoveredEndings)
}
