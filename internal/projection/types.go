package projection

import (
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	"github.com/shopspring/decimal"
)

// HeatmapEntry is one choice's row in a decision-point heatmap.
type HeatmapEntry struct {
	ChoiceID       string          `json:"choice_id"`
	SelectionCount int64           `json:"selection_count"`
	Percentage     decimal.Decimal `json:"percentage"`
	Trend          analytics.Trend `json:"trend"`
}

// HeatmapResponse is the response body for a heatmap query.
// Entries are ordered by selection count descending; a decision point with
// no events yet yields an empty entries list, not an error.
type HeatmapResponse struct {
	StoryID         string         `json:"story_id"`
	ChapterID       string         `json:"chapter_id"`
	DecisionPointID string         `json:"decision_point_id"`
	TotalSelections int64          `json:"total_selections"`
	Entries         []HeatmapEntry `json:"entries"`
}
