package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/szibis/spamsketch/internal/cardinality"
	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/metric"
	"github.com/szibis/spamsketch/internal/report"
	"github.com/szibis/spamsketch/internal/stats"
	"github.com/szibis/spamsketch/internal/stream"
)

// Runner evaluates specs over a shared, read-only email sequence.
type Runner struct {
	emails  []email.Email
	workers int
	sink    report.Sink
	stats   *stats.Collector
	vocab   map[int]cardinality.Vocabulary
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers caps concurrent runs. Values below 1 run sequentially.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithSink stores every finished run.
func WithSink(s report.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithStats reports progress to c.
func WithStats(c *stats.Collector) Option {
	return func(r *Runner) { r.stats = c }
}

// WithVocabulary supplies distinct n-gram estimates for load factor logging.
func WithVocabulary(v map[int]cardinality.Vocabulary) Option {
	return func(r *Runner) { r.vocab = v }
}

// NewRunner creates a runner over emails.
func NewRunner(emails []email.Email, opts ...Option) *Runner {
	r := &Runner{emails: emails, workers: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Run evaluates every spec and returns results in spec order. Each run owns
// its classifier and evaluator. Cancellation is checked between runs; a run
// in progress finishes its stream.
func (r *Runner) Run(ctx context.Context, specs []Spec) ([]*report.Result, error) {
	results := make([]*report.Result, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, spec := range specs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.RunOne(gctx, spec)
			if err != nil {
				return fmt.Errorf("run %s: %w", spec.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// RunOne evaluates a single spec with a fresh classifier.
func (r *Runner) RunOne(ctx context.Context, spec Spec) (*report.Result, error) {
	clf, err := classifier.New(spec.Kind, spec.Options)
	if err != nil {
		return nil, err
	}
	return r.Evaluate(ctx, spec, clf)
}

// Evaluate streams the emails through clf, which must be untrained and
// built from spec, and records the result.
func (r *Runner) Evaluate(ctx context.Context, spec Spec, clf classifier.Classifier) (*report.Result, error) {
	res := report.NewResult(spec.Name, string(spec.Kind), spec.Params())
	var evOpts []stream.Option
	var obs *stats.RunObserver
	if r.stats != nil {
		obs = r.stats.StartRun(spec.Name)
		defer func() { obs.Finish(res.Finished.After(res.Started)) }()
		evOpts = append(evOpts, stream.WithObserver(obs))
	}

	ev, err := stream.New(r.emails, clf, spec.Window, evOpts...)
	if err != nil {
		return nil, err
	}

	fields := logging.F("run", spec.Name, "id", res.ID.String(), "windows", ev.Windows())
	if v, ok := r.vocab[spec.Options.NgramK]; ok {
		load := v.LoadFactor(spec.Buckets())
		fields["load_factor"] = load
		fields["collision_rate"] = v.CollisionRate(spec.Buckets(), spec.Rows())
		if r.stats != nil {
			r.stats.SetLoadFactor(spec.Name, load)
		}
	}
	logging.Debug("run started", fields)

	res.Snapshots = ev.Run()
	res.Emails = len(r.emails)
	res.Finished = time.Now()

	final, _ := res.Final()
	logging.Info("run finished", logging.F(
		"run", spec.Name,
		"emails", res.Emails,
		"duration_ms", res.Finished.Sub(res.Started).Milliseconds(),
		"accuracy", final.Accuracy,
		"precision", final.Precision,
		"recall", final.Recall,
	))

	if r.sink != nil {
		if err := r.sink.Write(ctx, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// MeasureVocabulary estimates the distinct n-grams for every order the specs
// use and publishes them to c when it is non-nil.
func MeasureVocabulary(emails []email.Email, specs []Spec, cfg cardinality.Config, c *stats.Collector) map[int]cardinality.Vocabulary {
	out := make(map[int]cardinality.Vocabulary)
	for _, k := range NgramOrders(specs) {
		start := time.Now()
		orderCfg := cfg
		orderCfg.OnModeSwitch = func(prev, cur cardinality.TrackerMode, count int64) {
			logging.Info("vocabulary tracker switched", logging.F(
				"ngram_k", k,
				"from", prev.String(),
				"to", cur.String(),
				"count_at_switch", count,
			))
			if c != nil {
				c.TrackerSwitched(k)
			}
		}
		v := cardinality.MeasureVocabulary(emails, k, orderCfg)
		out[k] = v
		if c != nil {
			c.SetVocabulary(k, v.Distinct)
		}
		logging.Info("vocabulary measured", logging.F(
			"ngram_k", k,
			"distinct", v.Distinct,
			"total", v.Total,
			"mode", v.Mode.String(),
			"tracker_bytes", v.TrackerBytes,
			"duration_ms", time.Since(start).Milliseconds(),
		))
	}
	return out
}

// Best returns, per metric, the run with the highest final value. Runs whose
// final value is NaN and nil results are skipped.
func Best(results []*report.Result) map[metric.Name]*report.Result {
	best := make(map[metric.Name]*report.Result)
	for _, name := range metric.Names {
		top := math.Inf(-1)
		for _, res := range results {
			if res == nil {
				continue
			}
			final, ok := res.Final()
			if !ok {
				continue
			}
			v := final.Get(name)
			if math.IsNaN(v) || v <= top {
				continue
			}
			top = v
			best[name] = res
		}
	}
	return best
}

// LogSummary logs the best run per metric.
func LogSummary(results []*report.Result) {
	best := Best(results)
	for _, name := range metric.Names {
		res, ok := best[name]
		if !ok {
			logging.Warn("no run produced a value", logging.F("metric", string(name)))
			continue
		}
		final, _ := res.Final()
		logging.Info("best run", logging.F(
			"metric", string(name),
			"value", final.Get(name),
			"run", res.Name,
		))
	}
}
