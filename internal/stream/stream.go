// Package stream drives online evaluation: every window of emails is first
// predicted with the current model, scored, and only then used for training.
package stream

import (
	"errors"
	"fmt"
	"iter"

	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/metric"
)

// ErrInvalidWindow is returned for a window size below 1.
var ErrInvalidWindow = errors.New("stream: window must be positive")

// Observer receives progress from an Evaluator.
type Observer interface {
	// Predicted is called after the predict phase of a window with the
	// number of emails scored.
	Predicted(n int)
	// Updated is called after the update phase with the number of emails
	// used for training.
	Updated(n int)
	// Snapshot is called with each window's cumulative scores.
	Snapshot(s metric.Snapshot)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(ev *Evaluator) { ev.observer = o }
}

// WithAccumulator uses acc instead of a fresh accumulator.
func WithAccumulator(acc *metric.Accumulator) Option {
	return func(ev *Evaluator) { ev.acc = acc }
}

// Evaluator walks an email sequence once, window by window. It is not
// restartable: a second call to Snapshots continues after the last window
// already produced.
type Evaluator struct {
	emails   []email.Email
	clf      classifier.Classifier
	window   int
	acc      *metric.Accumulator
	observer Observer

	pos   int
	index int
}

// New returns an evaluator over emails in order.
func New(emails []email.Email, clf classifier.Classifier, window int, opts ...Option) (*Evaluator, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}
	if clf == nil {
		return nil, errors.New("stream: nil classifier")
	}
	ev := &Evaluator{emails: emails, clf: clf, window: window}
	for _, opt := range opts {
		opt(ev)
	}
	if ev.acc == nil {
		ev.acc = &metric.Accumulator{}
	}
	return ev, nil
}

// Windows returns how many snapshots a full pass produces: ceil(N / window).
func (ev *Evaluator) Windows() int {
	return (len(ev.emails) + ev.window - 1) / ev.window
}

// Accumulator returns the running metric accumulator.
func (ev *Evaluator) Accumulator() *metric.Accumulator { return ev.acc }

// Done reports whether every email has been consumed.
func (ev *Evaluator) Done() bool { return ev.pos >= len(ev.emails) }

// Snapshots yields one snapshot per remaining window. Each window is fully
// processed (predict, snapshot, update) before its snapshot is yielded, so
// stopping early leaves the model trained on every window seen.
func (ev *Evaluator) Snapshots() iter.Seq[metric.Snapshot] {
	return func(yield func(metric.Snapshot) bool) {
		for !ev.Done() {
			if !yield(ev.step()) {
				return
			}
		}
	}
}

// Run consumes the remaining windows and returns their snapshots.
func (ev *Evaluator) Run() []metric.Snapshot {
	out := make([]metric.Snapshot, 0, ev.Windows()-ev.index)
	for s := range ev.Snapshots() {
		out = append(out, s)
	}
	return out
}

func (ev *Evaluator) step() metric.Snapshot {
	end := min(ev.pos+ev.window, len(ev.emails))
	batch := ev.emails[ev.pos:end]

	for _, e := range batch {
		ev.acc.Evaluate(ev.clf, e)
	}
	snap := ev.acc.Snapshot(ev.index)
	if ev.observer != nil {
		ev.observer.Predicted(len(batch))
		ev.observer.Snapshot(snap)
	}

	for _, e := range batch {
		ev.clf.Update(e)
	}
	if ev.observer != nil {
		ev.observer.Updated(len(batch))
	}

	ev.pos = end
	ev.index++
	return snap
}

// Stream evaluates clf over emails and returns every snapshot.
func Stream(emails []email.Email, clf classifier.Classifier, window int, opts ...Option) ([]metric.Snapshot, error) {
	ev, err := New(emails, clf, window, opts...)
	if err != nil {
		return nil, err
	}
	return ev.Run(), nil
}
