// Package metric accumulates confusion-matrix counts over a stream of
// predictions and derives accuracy, precision and recall from them.
package metric

import (
	"math"

	"github.com/szibis/spamsketch/internal/email"
)

// Name selects one of the derived metrics.
type Name string

const (
	Accuracy  Name = "accuracy"
	Precision Name = "precision"
	Recall    Name = "recall"
)

// Names lists the derived metrics in report order.
var Names = []Name{Accuracy, Precision, Recall}

// Classifier is the read path the accumulator needs.
type Classifier interface {
	Predict(e email.Email) float64
	Classify(score float64) bool
}

// Accumulator holds running counts for one evaluation run. The zero value is
// ready to use. Spam is the positive class.
//
// Every ratio with a zero denominator is NaN: accuracy before any email,
// precision before any spam prediction, recall before any spam email.
type Accumulator struct {
	N       int64
	Correct int64
	TP      int64
	FP      int64
	FN      int64
}

// Observe records one labelled prediction.
func (a *Accumulator) Observe(spam, predicted bool) {
	a.N++
	if spam == predicted {
		a.Correct++
	}
	switch {
	case spam && predicted:
		a.TP++
	case !spam && predicted:
		a.FP++
	case spam && !predicted:
		a.FN++
	}
}

// Evaluate predicts e with clf and records the outcome. It does not update clf.
func (a *Accumulator) Evaluate(clf Classifier, e email.Email) {
	a.Observe(e.Spam(), clf.Classify(clf.Predict(e)))
}

// Accuracy is correct/n.
func (a *Accumulator) Accuracy() float64 { return ratio(a.Correct, a.N) }

// Error is 1 - accuracy.
func (a *Accumulator) Error() float64 { return 1 - a.Accuracy() }

// Precision is TP/(TP+FP).
func (a *Accumulator) Precision() float64 { return ratio(a.TP, a.TP+a.FP) }

// Recall is TP/(TP+FN).
func (a *Accumulator) Recall() float64 { return ratio(a.TP, a.TP+a.FN) }

// F1 is the harmonic mean of precision and recall, NaN when either is.
func (a *Accumulator) F1() float64 { return ratio(2*a.TP, 2*a.TP+a.FP+a.FN) }

// Get returns the metric called name, NaN for unknown names.
func (a *Accumulator) Get(name Name) float64 {
	switch name {
	case Accuracy:
		return a.Accuracy()
	case Precision:
		return a.Precision()
	case Recall:
		return a.Recall()
	default:
		return math.NaN()
	}
}

// Snapshot captures the derived metrics after window Window.
func (a *Accumulator) Snapshot(window int) Snapshot {
	return Snapshot{
		Window:    window,
		N:         a.N,
		Accuracy:  a.Accuracy(),
		Precision: a.Precision(),
		Recall:    a.Recall(),
	}
}

// Snapshot is the cumulative score after one evaluation window.
type Snapshot struct {
	Window    int
	N         int64
	Accuracy  float64
	Precision float64
	Recall    float64
}

// Get returns the metric called name, NaN for unknown names.
func (s Snapshot) Get(name Name) float64 {
	switch name {
	case Accuracy:
		return s.Accuracy
	case Precision:
		return s.Precision
	case Recall:
		return s.Recall
	default:
		return math.NaN()
	}
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
