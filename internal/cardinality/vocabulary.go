package cardinality

import (
	"math"

	"github.com/szibis/spamsketch/internal/email"
)

// Vocabulary is the distinct n-gram estimate for one n-gram order.
type Vocabulary struct {
	NgramK   int
	Distinct int64
	Total    int64
	Mode     Mode
	// TrackerBytes is the tracker's memory use at the end of the pass.
	TrackerBytes uint64
}

// MeasureVocabulary streams every n-gram of order k through a fresh tracker.
func MeasureVocabulary(emails []email.Email, k int, cfg Config) Vocabulary {
	tr := NewTracker(cfg)
	var total int64
	for _, e := range emails {
		for gram := range e.NGrams(k) {
			tr.Add([]byte(gram))
			total++
		}
	}
	return Vocabulary{
		NgramK:       k,
		Distinct:     tr.Count(),
		Total:        total,
		Mode:         cfg.Mode,
		TrackerBytes: tr.MemoryUsage(),
	}
}

// LoadFactor is distinct n-grams per table cell.
func (v Vocabulary) LoadFactor(buckets int) float64 {
	if buckets <= 0 {
		return math.NaN()
	}
	return float64(v.Distinct) / float64(buckets)
}

// CollisionRate is the probability that an n-gram shares its cell with at
// least one other distinct n-gram in a single hashed row, 1 - exp(-load).
// A count-min sketch with several rows collides in every row far less often:
// the rate raised to the number of rows.
func (v Vocabulary) CollisionRate(buckets, rows int) float64 {
	load := v.LoadFactor(buckets)
	if math.IsNaN(load) || rows < 1 {
		return math.NaN()
	}
	return math.Pow(-math.Expm1(-load), float64(rows))
}
