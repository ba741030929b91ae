package cardinality

// ExactTracker keeps every key in a map.
type ExactTracker struct {
	items map[string]struct{}
}

// NewExactTracker creates an exact tracker.
func NewExactTracker() *ExactTracker {
	return &ExactTracker{items: make(map[string]struct{})}
}

// Add records key and returns true if it was new.
func (t *ExactTracker) Add(key []byte) bool {
	if _, exists := t.items[string(key)]; exists {
		return false
	}
	t.items[string(key)] = struct{}{}
	return true
}

// Count returns the number of distinct keys.
func (t *ExactTracker) Count() int64 {
	return int64(len(t.items))
}

// MemoryUsage estimates ~48 bytes per n-gram (short key plus map overhead).
func (t *ExactTracker) MemoryUsage() uint64 {
	return uint64(len(t.items)) * 48
}
