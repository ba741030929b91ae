// Package classifier implements online spam classifiers over hashed
// counter stores. Each classifier combines a counter strategy (a single
// feature-hashed table or a count-min sketch) with a scoring rule (Naive
// Bayes log-odds or perceptron margin).
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/hashing"
	"github.com/szibis/spamsketch/internal/sketch"
)

// ErrInvalidConfig is wrapped by every construction error.
var ErrInvalidConfig = errors.New("classifier: invalid configuration")

// Classifier is the predict/classify/update contract shared by all variants.
// Predict and Classify never mutate state; Update does.
type Classifier interface {
	Predict(e email.Email) float64
	Classify(score float64) bool
	Update(e email.Email)
}

// Kind names a classifier variant.
type Kind string

const (
	KindNaiveBayesFeatureHashing Kind = "naive-bayes-feature-hashing"
	KindNaiveBayesCountMin       Kind = "naive-bayes-count-min"
	KindPerceptronFeatureHashing Kind = "perceptron-feature-hashing"
	KindPerceptronCountMin       Kind = "perceptron-count-min"
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{
	KindNaiveBayesFeatureHashing,
	KindNaiveBayesCountMin,
	KindPerceptronFeatureHashing,
	KindPerceptronCountMin,
}

// ParseKind parses a variant name or its short alias (nb-fh, nb-cm, pc-fh, pc-cm).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindNaiveBayesFeatureHashing), "nb-fh":
		return KindNaiveBayesFeatureHashing, nil
	case string(KindNaiveBayesCountMin), "nb-cm":
		return KindNaiveBayesCountMin, nil
	case string(KindPerceptronFeatureHashing), "pc-fh":
		return KindPerceptronFeatureHashing, nil
	case string(KindPerceptronCountMin), "pc-cm":
		return KindPerceptronCountMin, nil
	default:
		return "", fmt.Errorf("%w: unknown classifier kind %q", ErrInvalidConfig, s)
	}
}

// Short returns the short alias of the kind.
func (k Kind) Short() string {
	switch k {
	case KindNaiveBayesFeatureHashing:
		return "nb-fh"
	case KindNaiveBayesCountMin:
		return "nb-cm"
	case KindPerceptronFeatureHashing:
		return "pc-fh"
	case KindPerceptronCountMin:
		return "pc-cm"
	default:
		return string(k)
	}
}

// IsBayes reports whether the kind uses the Naive Bayes rule.
func (k Kind) IsBayes() bool {
	return k == KindNaiveBayesFeatureHashing || k == KindNaiveBayesCountMin
}

// IsCountMin reports whether the kind uses a count-min sketch.
func (k Kind) IsCountMin() bool {
	return k == KindNaiveBayesCountMin || k == KindPerceptronCountMin
}

// Options configures a classifier. Fields that do not apply to a variant
// are ignored (NumHashes for feature hashing, Threshold for perceptrons,
// LearningRate and Combine for Naive Bayes).
type Options struct {
	LogNumBuckets int
	NumHashes     int
	Threshold     float64
	LearningRate  float64
	NgramK        int
	Seed          uint64
	Hash          hashing.Algorithm
	Combine       sketch.Combine
}

// DefaultOptions returns the defaults used by every variant.
func DefaultOptions() Options {
	return Options{
		LogNumBuckets: 16,
		NumHashes:     3,
		Threshold:     0.5,
		LearningRate:  0.1,
		NgramK:        1,
		Seed:          hashing.DefaultSeed,
		Hash:          hashing.AlgorithmMetro,
		Combine:       sketch.CombineMin,
	}
}

// Validate checks opts for kind.
func (o Options) Validate(kind Kind) error {
	if o.NgramK < 1 {
		return fmt.Errorf("%w: ngram_k must be at least 1, got %d", ErrInvalidConfig, o.NgramK)
	}
	if o.LogNumBuckets < 1 || o.LogNumBuckets > sketch.MaxLogBuckets {
		return fmt.Errorf("%w: log_num_buckets %d outside [1, %d]", ErrInvalidConfig, o.LogNumBuckets, sketch.MaxLogBuckets)
	}
	if kind.IsCountMin() && o.NumHashes < 1 {
		return fmt.Errorf("%w: num_hashes must be at least 1, got %d", ErrInvalidConfig, o.NumHashes)
	}
	if kind.IsBayes() {
		if !(o.Threshold > 0 && o.Threshold < 1) {
			return fmt.Errorf("%w: threshold %v outside (0, 1)", ErrInvalidConfig, o.Threshold)
		}
	} else if !(o.LearningRate > 0) {
		return fmt.Errorf("%w: learning_rate must be positive, got %v", ErrInvalidConfig, o.LearningRate)
	}
	if _, err := hashing.ParseAlgorithm(string(o.Hash)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := sketch.ParseCombine(string(o.Combine)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// New builds the classifier variant named by kind.
func New(kind Kind, opts Options) (Classifier, error) {
	var (
		clf Classifier
		err error
	)
	switch kind {
	case KindNaiveBayesFeatureHashing:
		clf, err = NewNaiveBayesFeatureHashing(opts)
	case KindNaiveBayesCountMin:
		clf, err = NewNaiveBayesCountMin(opts)
	case KindPerceptronFeatureHashing:
		clf, err = NewPerceptronFeatureHashing(opts)
	case KindPerceptronCountMin:
		clf, err = NewPerceptronCountMin(opts)
	default:
		err = fmt.Errorf("%w: unknown classifier kind %q", ErrInvalidConfig, kind)
	}
	if err != nil {
		return nil, err
	}
	return clf, nil
}

func (o Options) sketchConfig(rows int, init float64) sketch.Config {
	return sketch.Config{
		LogBuckets: o.LogNumBuckets,
		Rows:       rows,
		Seed:       o.Seed,
		Hash:       o.Hash,
		Init:       init,
		Combine:    o.Combine,
	}
}
