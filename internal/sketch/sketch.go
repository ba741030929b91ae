// Package sketch implements the fixed-size hashed counter stores used by the
// classifiers: a single feature-hashed Table and a CountMin sketch of tables.
package sketch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/szibis/spamsketch/internal/hashing"
)

// MaxLogBuckets bounds the table size exponent.
const MaxLogBuckets = 30

// ErrInvalidConfig is returned for impossible table shapes.
var ErrInvalidConfig = errors.New("sketch: invalid configuration")

// Counter is a hashed store of per-token values. Add may be called with any
// delta; Estimate returns the store's point estimate for a token.
type Counter interface {
	Add(token string, delta float64)
	Estimate(token string) float64
	// Buckets is the number of cells in one row.
	Buckets() int
	// Rows is the number of independent hash rows.
	Rows() int
}

// Config describes a hashed store.
type Config struct {
	LogBuckets int
	Rows       int
	Seed       uint64
	Hash       hashing.Algorithm
	// Init is the initial value of every cell (1 for Laplace counts, 0 for weights).
	Init    float64
	Combine Combine
}

func (c Config) validate() error {
	if c.LogBuckets < 1 || c.LogBuckets > MaxLogBuckets {
		return fmt.Errorf("%w: log_num_buckets %d outside [1, %d]", ErrInvalidConfig, c.LogBuckets, MaxLogBuckets)
	}
	if c.Rows < 1 {
		return fmt.Errorf("%w: num_hashes must be positive, got %d", ErrInvalidConfig, c.Rows)
	}
	return nil
}

// Combine reduces the per-row values of one token to a single estimate.
type Combine string

const (
	// CombineMin takes the smallest row value. For non-negative counts this is
	// the tightest overestimate. For signed weights it is kept as an
	// approximation even though collisions can push a row either way.
	CombineMin Combine = "min"
	// CombineMedian takes the median row value (mean of the two middle values
	// for an even number of rows).
	CombineMedian Combine = "median"
)

// ParseCombine parses a combiner name. Empty selects min.
func ParseCombine(s string) (Combine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "min":
		return CombineMin, nil
	case "median":
		return CombineMedian, nil
	default:
		return "", fmt.Errorf("%w: unknown combiner %q", ErrInvalidConfig, s)
	}
}

// Reduce combines vals according to c. vals may be reordered.
func (c Combine) Reduce(vals []float64) float64 {
	switch c {
	case CombineMedian:
		return median(vals)
	default:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	}
}

func median(vals []float64) float64 {
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// New returns a Table when cfg.Rows is 1 and a CountMin otherwise.
func New(cfg Config) (Counter, error) {
	if cfg.Rows == 1 {
		return NewTable(cfg)
	}
	return NewCountMin(cfg)
}
