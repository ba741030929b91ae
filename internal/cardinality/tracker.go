package cardinality

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// Tracker counts distinct keys, exactly or approximately. Trackers are not
// safe for concurrent use; each measurement owns its own.
type Tracker interface {
	// Add records key. It returns true if the key looked new.
	Add(key []byte) bool

	// Count returns the number of distinct keys seen.
	Count() int64

	// MemoryUsage returns approximate memory usage in bytes.
	MemoryUsage() uint64
}

// BloomTracker counts keys the first time a Bloom filter does not contain
// them. False positives make it undercount by roughly the filter's rate.
type BloomTracker struct {
	filter *bloom.BloomFilter
	count  int64
}

// NewBloomTracker creates a Bloom filter tracker sized from cfg.
func NewBloomTracker(cfg Config) *BloomTracker {
	return &BloomTracker{
		filter: bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate),
	}
}

// Add records key and returns true if it was not already in the filter.
func (t *BloomTracker) Add(key []byte) bool {
	if t.filter.TestAndAdd(key) {
		return false
	}
	t.count++
	return true
}

// Count returns the number of keys counted as new.
func (t *BloomTracker) Count() int64 {
	return t.count
}

// MemoryUsage returns the filter's bit array size in bytes.
func (t *BloomTracker) MemoryUsage() uint64 {
	return uint64(t.filter.Cap()) / 8
}
