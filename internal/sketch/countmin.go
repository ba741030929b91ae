package sketch

import (
	"github.com/szibis/spamsketch/internal/hashing"
)

// CountMin holds Rows independent hashed rows stored row-major in one slice.
// Every update touches one cell per row; estimates combine the row values.
type CountMin struct {
	cells   []float64
	seeds   []uint64
	width   int
	bucket  hashing.Bucketer
	combine Combine
	scratch []float64
}

// NewCountMin creates a count-min sketch.
func NewCountMin(cfg Config) (*CountMin, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	h, err := hashing.For(cfg.Hash)
	if err != nil {
		return nil, err
	}
	combine := cfg.Combine
	if combine == "" {
		combine = CombineMin
	}
	if _, err := ParseCombine(string(combine)); err != nil {
		return nil, err
	}
	b := hashing.NewBucketer(h, cfg.LogBuckets)
	cells := make([]float64, cfg.Rows*b.Size())
	if cfg.Init != 0 {
		for i := range cells {
			cells[i] = cfg.Init
		}
	}
	return &CountMin{
		cells:   cells,
		seeds:   hashing.Seeds(cfg.Seed, cfg.Rows),
		width:   b.Size(),
		bucket:  b,
		combine: combine,
		scratch: make([]float64, cfg.Rows),
	}, nil
}

func (c *CountMin) index(row int, token string) int {
	return row*c.width + c.bucket.Bucket(token, c.seeds[row])
}

// Add adds delta to the token's cell in every row.
func (c *CountMin) Add(token string, delta float64) {
	for row := range c.seeds {
		c.cells[c.index(row, token)] += delta
	}
}

// Estimate combines the token's cells across rows.
// Not safe for concurrent use: it reuses a scratch buffer.
func (c *CountMin) Estimate(token string) float64 {
	for row := range c.seeds {
		c.scratch[row] = c.cells[c.index(row, token)]
	}
	return c.combine.Reduce(c.scratch)
}

// RowValues returns the token's cell in each row.
func (c *CountMin) RowValues(token string) []float64 {
	vals := make([]float64, len(c.seeds))
	for row := range c.seeds {
		vals[row] = c.cells[c.index(row, token)]
	}
	return vals
}

// Buckets returns the number of cells per row.
func (c *CountMin) Buckets() int { return c.width }

// Rows returns the number of hash rows.
func (c *CountMin) Rows() int { return len(c.seeds) }
