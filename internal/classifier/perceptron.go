package classifier

import (
	"fmt"
	"io"

	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/sketch"
)

// Perceptron is an online linear classifier over hashed n-gram weights.
// Spam is +1 and ham is -1.
type Perceptron struct {
	weights      sketch.Counter
	bias         float64
	learningRate float64
	ngramK       int
}

func newPerceptron(kind Kind, opts Options, rows int) (*Perceptron, error) {
	if err := opts.Validate(kind); err != nil {
		return nil, err
	}
	w, err := sketch.New(opts.sketchConfig(rows, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Perceptron{weights: w, learningRate: opts.LearningRate, ngramK: opts.NgramK}, nil
}

// NewPerceptronCountMin returns a perceptron whose weights are kept in a
// count-min sketch of opts.NumHashes rows. Each token's weight is the
// opts.Combine reduction of its row cells (min unless configured otherwise).
// Min is not a sound estimator for signed weights; it is kept so results stay
// comparable with the count-based variants.
func NewPerceptronCountMin(opts Options) (*Perceptron, error) {
	return newPerceptron(KindPerceptronCountMin, opts, opts.NumHashes)
}

// Predict returns the margin: the sum of token weights plus the bias.
func (p *Perceptron) Predict(e email.Email) float64 {
	var score float64
	for gram := range e.NGrams(p.ngramK) {
		score += p.weights.Estimate(gram)
	}
	return score + p.bias
}

// Classify reports spam for a strictly positive margin.
func (p *Perceptron) Classify(score float64) bool {
	return score > 0
}

// Update applies w += rate * (desired - sign(prediction)) to every token
// and to the bias. Correct predictions leave the model untouched.
func (p *Perceptron) Update(e email.Email) {
	desired := -1.0
	if e.Spam() {
		desired = 1
	}
	errTerm := desired - sign(p.Predict(e))
	if errTerm == 0 {
		return
	}
	delta := p.learningRate * errTerm
	for gram := range e.NGrams(p.ngramK) {
		p.weights.Add(gram, delta)
	}
	p.bias += delta
}

// Bias returns the bias term.
func (p *Perceptron) Bias() float64 { return p.bias }

// Weight returns the combined weight estimate of gram.
func (p *Perceptron) Weight(gram string) float64 { return p.weights.Estimate(gram) }

// Buckets returns the number of cells per row.
func (p *Perceptron) Buckets() int { return p.weights.Buckets() }

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// PerceptronFeatureHashing is a perceptron over a single hashed weight table.
type PerceptronFeatureHashing struct {
	*Perceptron
	table *sketch.Table
}

// NewPerceptronFeatureHashing returns a feature-hashing perceptron.
func NewPerceptronFeatureHashing(opts Options) (*PerceptronFeatureHashing, error) {
	p, err := newPerceptron(KindPerceptronFeatureHashing, opts, 1)
	if err != nil {
		return nil, err
	}
	return &PerceptronFeatureHashing{Perceptron: p, table: p.weights.(*sketch.Table)}, nil
}

// Dump writes the bias followed by one "w<i> <weight>" line per bucket.
func (c *PerceptronFeatureHashing) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "bias %g\n", c.bias); err != nil {
		return err
	}
	for i := 0; i < c.table.Buckets(); i++ {
		if _, err := fmt.Fprintf(w, "w%d %g\n", i, c.table.Cell(i)); err != nil {
			return err
		}
	}
	return nil
}
