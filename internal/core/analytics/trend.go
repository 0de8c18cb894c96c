package analytics

import "fmt"

// Trend classifies how a choice's selection count moved against the previous
// snapshot window.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// defaultTrendThreshold is the relative change beyond which a tally counts
// as rising or falling. A policy constant, not a hidden heuristic.
const defaultTrendThreshold = 0.10

// TrendPolicy holds the classification threshold. Built from configuration
// so deployments can tune sensitivity without a code change.
type TrendPolicy struct {
	// Threshold is the relative change boundary: rising above +Threshold,
	// falling below -Threshold, stable in between.
	Threshold float64
}

// DefaultTrendPolicy returns the ±10% policy.
func DefaultTrendPolicy() TrendPolicy {
	return TrendPolicy{Threshold: defaultTrendThreshold}
}

// NewTrendPolicy validates and builds a policy from a configured threshold.
func NewTrendPolicy(threshold float64) (TrendPolicy, error) {
	if threshold <= 0 {
		return TrendPolicy{}, fmt.Errorf("trend threshold must be positive, got %v", threshold)
	}
	return TrendPolicy{Threshold: threshold}, nil
}

// Classify compares the current count to the previous window count.
// A zero previous window means there is no baseline yet: the tally is
// stable by definition, not infinitely rising.
func (p TrendPolicy) Classify(current, previous int64) Trend {
	if previous <= 0 {
		return TrendStable
	}
	change := float64(current-previous) / float64(previous)
	switch {
	case change > p.Threshold:
		return TrendRising
	case change < -p.Threshold:
		return TrendFalling
	default:
		return TrendStable
	}
}
