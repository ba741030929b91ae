package cardinality

import (
	"github.com/axiomhq/hyperloglog"
)

// HLLTracker estimates distinct counts in fixed memory with HyperLogLog
// (precision 14, ~16KB of registers). It cannot answer membership queries.
type HLLTracker struct {
	sketch *hyperloglog.Sketch
}

// NewHLLTracker creates an empty HyperLogLog tracker.
func NewHLLTracker() *HLLTracker {
	return &HLLTracker{sketch: hyperloglog.New()}
}

// Add inserts key. HyperLogLog cannot tell whether a key is new, so it
// always returns true.
func (t *HLLTracker) Add(key []byte) bool {
	t.sketch.Insert(key)
	return true
}

// Count returns the estimated number of distinct keys.
func (t *HLLTracker) Count() int64 {
	return int64(t.sketch.Estimate())
}

// MemoryUsage returns the dense register size for precision 14.
func (t *HLLTracker) MemoryUsage() uint64 {
	return 1 << 14
}
