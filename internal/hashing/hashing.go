// Package hashing provides the seeded string hashes used to place n-grams
// into fixed-size hashed tables.
package hashing

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	metro "github.com/dgryski/go-metro"
)

// Algorithm selects the hash function family.
type Algorithm string

const (
	// AlgorithmMetro uses metrohash64. This is the default.
	AlgorithmMetro Algorithm = "metro"
	// AlgorithmXXHash uses seeded xxhash64.
	AlgorithmXXHash Algorithm = "xxhash"
)

// DefaultSeed is the base seed used when none is configured.
const DefaultSeed uint64 = 0x9748cd

// golden is the 64-bit golden ratio used to spread row seeds apart.
const golden uint64 = 0x9e3779b97f4a7c15

// ParseAlgorithm parses an algorithm name. Empty selects metro.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metro":
		return AlgorithmMetro, nil
	case "xxhash", "xxh64":
		return AlgorithmXXHash, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// Func hashes a token under a seed.
type Func func(token string, seed uint64) uint64

// For returns the hash function for the algorithm.
func For(a Algorithm) (Func, error) {
	switch a {
	case AlgorithmMetro, "":
		return Metro, nil
	case AlgorithmXXHash:
		return XXHash, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", a)
	}
}

// Metro hashes token with metrohash64.
func Metro(token string, seed uint64) uint64 {
	return metro.Hash64([]byte(token), seed)
}

// XXHash hashes token with xxhash64 using seed.
func XXHash(token string, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.WriteString(token)
	return d.Sum64()
}

// Seeds derives n distinct row seeds from base. Row 0 always gets base.
func Seeds(base uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = base + uint64(i)*golden
	}
	return seeds
}

// Bucketer maps tokens into a power-of-two table.
type Bucketer struct {
	hash Func
	mask uint64
}

// NewBucketer returns a Bucketer for a table of 1<<logBuckets cells.
// logBuckets must already be validated by the caller.
func NewBucketer(hash Func, logBuckets int) Bucketer {
	return Bucketer{hash: hash, mask: uint64(1)<<uint(logBuckets) - 1}
}

// Bucket returns the cell index of token under seed. Both hash families mix
// the low bits well, so masking is equivalent to a modulo by the table size.
func (b Bucketer) Bucket(token string, seed uint64) int {
	return int(b.hash(token, seed) & b.mask)
}

// Size returns the number of cells addressed by the bucketer.
func (b Bucketer) Size() int {
	return int(b.mask + 1)
}
