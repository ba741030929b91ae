package cardinality

import (
	"fmt"
	"strings"
)

// Mode determines the distinct-count implementation.
type Mode int

const (
	// ModeBloom counts first sightings through a Bloom filter. It may
	// undercount slightly because of false positives.
	ModeBloom Mode = iota

	// ModeExact keeps every key in a map. Exact but unbounded.
	ModeExact

	// ModeHLL uses a fixed-size HyperLogLog sketch.
	ModeHLL

	// ModeHybrid starts as a Bloom filter and switches to HyperLogLog once
	// HybridThreshold distinct keys have been seen.
	ModeHybrid
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBloom:
		return "bloom"
	case ModeExact:
		return "exact"
	case ModeHLL:
		return "hll"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode string. Empty selects hll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hll":
		return ModeHLL, nil
	case "bloom":
		return ModeBloom, nil
	case "exact":
		return ModeExact, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return ModeHLL, fmt.Errorf("unknown cardinality mode %q", s)
	}
}

// Config holds configuration for distinct n-gram tracking.
type Config struct {
	Mode Mode

	// ExpectedItems sizes the Bloom filter.
	ExpectedItems uint

	// FalsePositiveRate is the Bloom filter target false positive rate.
	FalsePositiveRate float64

	// HybridThreshold is the distinct count at which a hybrid tracker
	// switches to HyperLogLog. Zero never switches.
	HybridThreshold int64

	// OnModeSwitch is handed to hybrid trackers.
	OnModeSwitch func(previous, current TrackerMode, countAtSwitch int64)
}

// DefaultConfig returns defaults sized for a few million distinct n-grams.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeHLL,
		ExpectedItems:     1 << 22,
		FalsePositiveRate: 0.01,
		HybridThreshold:   1 << 20,
	}
}

// NewTracker creates a tracker for cfg.Mode.
func NewTracker(cfg Config) Tracker {
	switch cfg.Mode {
	case ModeExact:
		return NewExactTracker()
	case ModeHLL:
		return NewHLLTracker()
	case ModeHybrid:
		ht := NewHybridTracker(cfg, cfg.HybridThreshold)
		ht.OnModeSwitch = cfg.OnModeSwitch
		return ht
	default:
		return NewBloomTracker(cfg)
	}
}
