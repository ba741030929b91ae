package sketch

import (
	"github.com/szibis/spamsketch/internal/hashing"
)

// Table is a single feature-hashed array of 1<<LogBuckets cells.
type Table struct {
	cells  []float64
	seed   uint64
	bucket hashing.Bucketer
}

// NewTable creates a feature-hashed table. cfg.Rows is ignored.
func NewTable(cfg Config) (*Table, error) {
	cfg.Rows = 1
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	h, err := hashing.For(cfg.Hash)
	if err != nil {
		return nil, err
	}
	b := hashing.NewBucketer(h, cfg.LogBuckets)
	cells := make([]float64, b.Size())
	if cfg.Init != 0 {
		for i := range cells {
			cells[i] = cfg.Init
		}
	}
	return &Table{cells: cells, seed: cfg.Seed, bucket: b}, nil
}

// Add adds delta to the token's cell.
func (t *Table) Add(token string, delta float64) {
	t.cells[t.bucket.Bucket(token, t.seed)] += delta
}

// Estimate returns the token's cell.
func (t *Table) Estimate(token string) float64 {
	return t.cells[t.bucket.Bucket(token, t.seed)]
}

// Cell returns the value stored at index i.
func (t *Table) Cell(i int) float64 {
	return t.cells[i]
}

// Buckets returns the number of cells.
func (t *Table) Buckets() int { return len(t.cells) }

// Rows always returns 1.
func (t *Table) Rows() int { return 1 }
