package partition

import "hash/fnv"

// Count is the fixed number of logical partitions for tally rows.
// Never changes after initial deployment: it's a capacity decision, not a
// scaling decision.
const Count = 256

// For returns the partition ID for a given story ID.
// Stable and deterministic: the same story always maps to the same partition,
// so all tallies of one story shard together.
// Uses FNV-32a (stdlib, fast, well-distributed).
func For(storyID string) int {
	h := fnv.New32a()
	h.Write([]byte(storyID))
	return int(h.Sum32()) % Count
}
