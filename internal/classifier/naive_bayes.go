package classifier

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/sketch"
)

// NaiveBayes scores emails with Laplace-smoothed multinomial Naive Bayes over
// hashed n-gram counts. All counts start at 1 so every logarithm is defined.
type NaiveBayes struct {
	ham, spam sketch.Counter

	numNgramHam  float64
	numNgramSpam float64
	numHam       float64
	numSpam      float64

	threshold float64
	ngramK    int
}

// Totals are the per-class example and n-gram counts, Laplace-initialised.
type Totals struct {
	Ham, Spam           float64
	NgramHam, NgramSpam float64
}

func newNaiveBayes(kind Kind, opts Options, rows int) (*NaiveBayes, error) {
	if err := opts.Validate(kind); err != nil {
		return nil, err
	}
	ham, err := sketch.New(opts.sketchConfig(rows, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	spam, err := sketch.New(opts.sketchConfig(rows, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &NaiveBayes{
		ham:          ham,
		spam:         spam,
		numNgramHam:  1,
		numNgramSpam: 1,
		numHam:       1,
		numSpam:      1,
		threshold:    opts.Threshold,
		ngramK:       opts.NgramK,
	}, nil
}

// NewNaiveBayesCountMin returns a Naive Bayes classifier whose per-class
// counts live in count-min sketches of opts.NumHashes rows. Estimates always
// use the row minimum.
func NewNaiveBayesCountMin(opts Options) (*NaiveBayes, error) {
	opts.Combine = sketch.CombineMin
	return newNaiveBayes(KindNaiveBayesCountMin, opts, opts.NumHashes)
}

// Update adds the email's n-grams to its class.
func (nb *NaiveBayes) Update(e email.Email) {
	counter := nb.ham
	n := float64(e.NGramCount(nb.ngramK))
	if e.Spam() {
		nb.numSpam++
		nb.numNgramSpam += n
		counter = nb.spam
	} else {
		nb.numHam++
		nb.numNgramHam += n
	}
	for gram := range e.NGrams(nb.ngramK) {
		counter.Add(gram, 1)
	}
}

// Predict returns P(spam | email).
func (nb *NaiveBayes) Predict(e email.Email) float64 {
	spam := nb.logScore(e, nb.spam, nb.numNgramSpam, nb.numSpam)
	ham := nb.logScore(e, nb.ham, nb.numNgramHam, nb.numHam)
	return math.Exp(spam - logAddExp(spam, ham))
}

// logScore is log P(class) + sum log P(gram | class) for one class.
func (nb *NaiveBayes) logScore(e email.Email, counts sketch.Counter, numNgram, numMail float64) float64 {
	var score float64
	for gram := range e.NGrams(nb.ngramK) {
		score += math.Log(counts.Estimate(gram))
	}
	score -= float64(e.NGramCount(nb.ngramK)) * math.Log(numNgram)
	score += math.Log(numMail) - logAddExp(math.Log(nb.numHam), math.Log(nb.numSpam))
	return score
}

// Classify reports spam when the posterior is strictly above the threshold.
func (nb *NaiveBayes) Classify(score float64) bool {
	return score > nb.threshold
}

// Totals returns the class totals.
func (nb *NaiveBayes) Totals() Totals {
	return Totals{
		Ham:       nb.numHam,
		Spam:      nb.numSpam,
		NgramHam:  nb.numNgramHam,
		NgramSpam: nb.numNgramSpam,
	}
}

// Count returns the smoothed count estimate of gram in the given class.
func (nb *NaiveBayes) Count(spam bool, gram string) float64 {
	if spam {
		return nb.spam.Estimate(gram)
	}
	return nb.ham.Estimate(gram)
}

// Buckets returns the number of cells per row.
func (nb *NaiveBayes) Buckets() int { return nb.ham.Buckets() }

// logAddExp returns log(exp(a) + exp(b)) without overflowing. The pair
// lives in an array so the call does not allocate.
func logAddExp(a, b float64) float64 {
	pair := [2]float64{a, b}
	return floats.LogSumExp(pair[:])
}

// NaiveBayesFeatureHashing is Naive Bayes over one hashed table per class.
type NaiveBayesFeatureHashing struct {
	*NaiveBayes
	hamTable, spamTable *sketch.Table
}

// NewNaiveBayesFeatureHashing returns a feature-hashing Naive Bayes classifier.
func NewNaiveBayesFeatureHashing(opts Options) (*NaiveBayesFeatureHashing, error) {
	nb, err := newNaiveBayes(KindNaiveBayesFeatureHashing, opts, 1)
	if err != nil {
		return nil, err
	}
	return &NaiveBayesFeatureHashing{
		NaiveBayes: nb,
		hamTable:   nb.ham.(*sketch.Table),
		spamTable:  nb.spam.(*sketch.Table),
	}, nil
}

// Dump writes one line per bucket: "w<i> <ham>, <spam>".
func (c *NaiveBayesFeatureHashing) Dump(w io.Writer) error {
	for i := 0; i < c.hamTable.Buckets(); i++ {
		if _, err := fmt.Fprintf(w, "w%d %g, %g\n", i, c.hamTable.Cell(i), c.spamTable.Cell(i)); err != nil {
			return err
		}
	}
	return nil
}
