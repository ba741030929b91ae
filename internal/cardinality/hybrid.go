package cardinality

import (
	"github.com/szibis/spamsketch/internal/logging"
)

// TrackerMode represents the current mode of a hybrid tracker.
type TrackerMode int32

const (
	// TrackerModeBloom indicates the tracker is answering from its Bloom filter.
	TrackerModeBloom TrackerMode = 0
	// TrackerModeHLL indicates the tracker has switched to HyperLogLog.
	TrackerModeHLL TrackerMode = 1
)

// String returns the string representation of the tracker mode.
func (m TrackerMode) String() string {
	switch m {
	case TrackerModeBloom:
		return "bloom"
	case TrackerModeHLL:
		return "hll"
	default:
		return "unknown"
	}
}

// HybridTracker counts through a Bloom filter while the vocabulary is small
// and switches to HyperLogLog past a threshold. The HyperLogLog sketch is fed
// from the start, so its estimate is complete when the switch happens.
type HybridTracker struct {
	bloomTracker *BloomTracker
	hllTracker   *HLLTracker
	mode         TrackerMode
	threshold    int64

	// OnModeSwitch is called once when the tracker moves to HLL.
	OnModeSwitch func(previous, current TrackerMode, countAtSwitch int64)
}

// NewHybridTracker creates a hybrid tracker. threshold <= 0 never switches.
func NewHybridTracker(cfg Config, threshold int64) *HybridTracker {
	return &HybridTracker{
		bloomTracker: NewBloomTracker(cfg),
		hllTracker:   NewHLLTracker(),
		mode:         TrackerModeBloom,
		threshold:    threshold,
	}
}

// Mode returns the current tracker mode.
func (t *HybridTracker) Mode() TrackerMode {
	return t.mode
}

// Add records key in both structures while in Bloom mode and only in the
// HyperLogLog sketch afterwards.
func (t *HybridTracker) Add(key []byte) bool {
	t.hllTracker.Add(key)
	if t.mode == TrackerModeHLL {
		return true
	}

	isNew := t.bloomTracker.Add(key)
	if t.threshold > 0 && t.bloomTracker.Count() >= t.threshold {
		t.switchToHLL()
	}
	return isNew
}

// Count returns the distinct count from the active structure.
func (t *HybridTracker) Count() int64 {
	if t.mode == TrackerModeHLL {
		return t.hllTracker.Count()
	}
	return t.bloomTracker.Count()
}

// MemoryUsage returns approximate memory usage in bytes.
func (t *HybridTracker) MemoryUsage() uint64 {
	if t.mode == TrackerModeHLL {
		return t.hllTracker.MemoryUsage()
	}
	return t.bloomTracker.MemoryUsage() + t.hllTracker.MemoryUsage()
}

func (t *HybridTracker) switchToHLL() {
	countAtSwitch := t.bloomTracker.Count()
	t.mode = TrackerModeHLL
	// The filter is no longer consulted.
	t.bloomTracker = nil

	logging.Debug("vocabulary tracker switched to HLL", logging.F(
		"count_at_switch", countAtSwitch,
		"threshold", t.threshold,
	))

	if t.OnModeSwitch != nil {
		t.OnModeSwitch(TrackerModeBloom, TrackerModeHLL, countAtSwitch)
	}
}
