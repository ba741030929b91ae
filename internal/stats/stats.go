// Package stats exports run progress and final scores as Prometheus metrics.
package stats

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/szibis/spamsketch/internal/health"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/metric"
)

// Collector owns a registry with every spamsketch metric. Each Collector is
// independent, so tests and concurrent sweeps do not share state.
type Collector struct {
	registry *prometheus.Registry

	accuracy   *prometheus.GaugeVec
	precision  *prometheus.GaugeVec
	recall     *prometheus.GaugeVec
	windows    *prometheus.GaugeVec
	predicted  *prometheus.CounterVec
	updated    *prometheus.CounterVec
	vocabulary *prometheus.GaugeVec
	loadFactor *prometheus.GaugeVec
	switches   *prometheus.CounterVec
	completed  prometheus.Counter
	inFlight   prometheus.Gauge

	mu     sync.Mutex
	active map[string]*RunObserver
}

// NewCollector creates a collector with the Go and process collectors
// registered alongside the run metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_run_accuracy",
			Help: "Cumulative accuracy of the run after its latest window",
		}, []string{"run"}),
		precision: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_run_precision",
			Help: "Cumulative spam precision of the run after its latest window",
		}, []string{"run"}),
		recall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_run_recall",
			Help: "Cumulative spam recall of the run after its latest window",
		}, []string{"run"}),
		windows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_run_windows",
			Help: "Windows evaluated so far by the run",
		}, []string{"run"}),
		predicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamsketch_emails_predicted_total",
			Help: "Emails scored before training",
		}, []string{"run"}),
		updated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamsketch_emails_updated_total",
			Help: "Emails used for training",
		}, []string{"run"}),
		vocabulary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_vocabulary_estimate",
			Help: "Estimated distinct n-grams in the corpus",
		}, []string{"ngram_k"}),
		loadFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spamsketch_table_load_factor",
			Help: "Distinct n-grams per hashed table cell",
		}, []string{"run"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamsketch_vocabulary_tracker_switches_total",
			Help: "Hybrid vocabulary trackers that moved from Bloom to HyperLogLog",
		}, []string{"ngram_k"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spamsketch_runs_completed_total",
			Help: "Runs that evaluated their whole stream",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spamsketch_runs_in_flight",
			Help: "Runs currently evaluating",
		}),
		active: make(map[string]*RunObserver),
	}
	c.registry.MustRegister(
		c.accuracy, c.precision, c.recall, c.windows,
		c.predicted, c.updated,
		c.vocabulary, c.loadFactor, c.switches,
		c.completed, c.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetVocabulary records the distinct n-gram estimate for order k.
func (c *Collector) SetVocabulary(k int, distinct int64) {
	c.vocabulary.WithLabelValues(strconv.Itoa(k)).Set(float64(distinct))
}

// TrackerSwitched counts a hybrid tracker switch while measuring order k.
func (c *Collector) TrackerSwitched(k int) {
	c.switches.WithLabelValues(strconv.Itoa(k)).Inc()
}

// SetLoadFactor records a run's table load factor.
func (c *Collector) SetLoadFactor(run string, load float64) {
	c.loadFactor.WithLabelValues(run).Set(load)
}

// StartRun returns the stream observer for run.
func (c *Collector) StartRun(run string) *RunObserver {
	o := &RunObserver{
		c:         c,
		run:       run,
		predicted: c.predicted.WithLabelValues(run),
		updated:   c.updated.WithLabelValues(run),
		accuracy:  c.accuracy.WithLabelValues(run),
		precision: c.precision.WithLabelValues(run),
		recall:    c.recall.WithLabelValues(run),
		windows:   c.windows.WithLabelValues(run),
	}
	c.mu.Lock()
	c.active[run] = o
	c.mu.Unlock()
	c.inFlight.Inc()
	return o
}

// Active returns how many runs are evaluating.
func (c *Collector) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// StartPeriodicLogging logs the progress of active runs every interval until
// ctx is done.
func (c *Collector) StartPeriodicLogging(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			for run, o := range c.active {
				logging.Info("run progress", logging.F(
					"run", run,
					"emails", o.Emails(),
					"windows", o.Windows(),
				))
			}
			c.mu.Unlock()
		}
	}
}

// Serve exposes /metrics on addr until ctx is done. A non-nil checker adds
// /live and /ready and is marked shutting down when ctx ends.
func (c *Collector) Serve(ctx context.Context, addr string, checker *health.Checker) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	if checker != nil {
		checker.Register(mux)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Info("stats server listening", logging.F("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if checker != nil {
			checker.SetShuttingDown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// RunObserver forwards one run's evaluator progress to the collector. It
// implements stream.Observer.
type RunObserver struct {
	c   *Collector
	run string

	predicted prometheus.Counter
	updated   prometheus.Counter
	accuracy  prometheus.Gauge
	precision prometheus.Gauge
	recall    prometheus.Gauge
	windows   prometheus.Gauge

	mu      sync.Mutex
	emails  int64
	nWindow int
	done    bool
}

// Predicted counts scored emails.
func (o *RunObserver) Predicted(n int) {
	o.predicted.Add(float64(n))
}

// Updated counts trained emails.
func (o *RunObserver) Updated(n int) {
	o.updated.Add(float64(n))
	o.mu.Lock()
	o.emails += int64(n)
	o.mu.Unlock()
}

// Snapshot publishes the latest cumulative scores. NaN scores leave the
// gauge at its previous value.
func (o *RunObserver) Snapshot(s metric.Snapshot) {
	setIfNumber(o.accuracy, s.Accuracy)
	setIfNumber(o.precision, s.Precision)
	setIfNumber(o.recall, s.Recall)
	o.windows.Set(float64(s.Window + 1))
	o.mu.Lock()
	o.nWindow = s.Window + 1
	o.mu.Unlock()
}

// Emails returns how many emails the run has trained on.
func (o *RunObserver) Emails() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.emails
}

// Windows returns how many windows the run has evaluated.
func (o *RunObserver) Windows() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nWindow
}

// Finish marks the run as no longer active. completed reports whether the
// whole stream was evaluated. Calling Finish twice has no effect.
func (o *RunObserver) Finish(completed bool) {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.done = true
	o.mu.Unlock()

	o.c.mu.Lock()
	delete(o.c.active, o.run)
	o.c.mu.Unlock()
	o.c.inFlight.Dec()
	if completed {
		o.c.completed.Inc()
	}
}

func setIfNumber(g prometheus.Gauge, v float64) {
	if !math.IsNaN(v) {
		g.Set(v)
	}
}
