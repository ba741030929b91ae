// Package report persists evaluation results: per-metric text files in the
// plot_results format and an optional SQLite database.
package report

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/szibis/spamsketch/internal/metric"
)

// Result is one finished evaluation run.
type Result struct {
	ID        uuid.UUID
	Name      string
	Kind      string
	Params    map[string]string
	Started   time.Time
	Finished  time.Time
	Emails    int
	Snapshots []metric.Snapshot
}

// NewResult starts a result with a fresh random ID.
func NewResult(name, kind string, params map[string]string) *Result {
	return &Result{
		ID:      uuid.New(),
		Name:    name,
		Kind:    kind,
		Params:  params,
		Started: time.Now(),
	}
}

// Final returns the last snapshot. ok is false for an empty run.
func (r *Result) Final() (s metric.Snapshot, ok bool) {
	if len(r.Snapshots) == 0 {
		return metric.Snapshot{}, false
	}
	return r.Snapshots[len(r.Snapshots)-1], true
}

// Series returns one metric across all windows.
func (r *Result) Series(name metric.Name) []float64 {
	out := make([]float64, len(r.Snapshots))
	for i, s := range r.Snapshots {
		out[i] = s.Get(name)
	}
	return out
}

// ParamKeys returns the parameter names in sorted order.
func (r *Result) ParamKeys() []string {
	return slices.Sorted(maps.Keys(r.Params))
}

// Sink stores results. Write may be called from several goroutines.
type Sink interface {
	Write(ctx context.Context, r *Result) error
	Close() error
}

// Pinger is implemented by sinks that can check they are still writable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger.
func Ping(ctx context.Context, s Sink) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Multi fans a result out to several sinks.
type Multi []Sink

// Write writes r to every sink and joins their errors.
func (m Multi) Write(ctx context.Context, r *Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping checks every sink and joins their errors.
func (m Multi) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := Ping(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
