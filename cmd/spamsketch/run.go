package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/health"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/metric"
	"github.com/szibis/spamsketch/internal/report"
	"github.com/szibis/spamsketch/internal/sweep"
)

type runOptions struct {
	kind         string
	ngramK       int
	logBuckets   int
	numHashes    int
	threshold    float64
	learningRate float64
	window       int
	hash         string
	combine      string
	dump         string
}

func newRunCmd(opts *options) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a single classifier configuration",
		Long: `Evaluate one classifier over the corpus. Each window of emails is scored
before the model trains on it; cumulative accuracy, precision and recall are
recorded after every window.

Grid values in the config file are reduced to their first entry.`,
		Example: `  spamsketch run --corpus data/enron.txt.zst --kind nb-cm --ngram-k 2 --window 100
  spamsketch run -c sweep.yaml --kind perceptron-feature-hashing --dump weights.txt`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingle(cmd, opts, ro)
		},
	}
	addIOFlags(cmd, opts)
	f := cmd.Flags()
	f.StringVarP(&ro.kind, "kind", "k", string(classifier.KindNaiveBayesCountMin), "classifier kind")
	f.IntVar(&ro.ngramK, "ngram-k", 0, "words per n-gram")
	f.IntVar(&ro.logBuckets, "log-buckets", 0, "log2 of the buckets per table row")
	f.IntVar(&ro.numHashes, "num-hashes", 0, "rows of a count-min sketch")
	f.Float64Var(&ro.threshold, "threshold", 0, "naive bayes spam probability threshold")
	f.Float64Var(&ro.learningRate, "learning-rate", 0, "perceptron learning rate")
	f.IntVarP(&ro.window, "window", "w", 0, "emails per evaluation window")
	f.StringVar(&ro.hash, "hash", "", "bucket hash (metro, xxhash)")
	f.StringVar(&ro.combine, "combine", "", "count-min row combiner for perceptron weights (min, median)")
	f.StringVar(&ro.dump, "dump", "", "write the trained feature hashing table to this file")
	return cmd
}

func runSingle(cmd *cobra.Command, opts *options, ro *runOptions) (err error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	cfg.Grid.Kinds = []string{ro.kind}
	if f.Changed("ngram-k") {
		cfg.Grid.NgramK = []int{ro.ngramK}
	}
	if f.Changed("log-buckets") {
		cfg.Grid.LogNumBuckets = []int{ro.logBuckets}
	}
	if f.Changed("num-hashes") {
		cfg.Grid.NumHashes = []int{ro.numHashes}
	}
	if f.Changed("threshold") {
		cfg.Grid.Thresholds = []float64{ro.threshold}
	}
	if f.Changed("learning-rate") {
		cfg.Grid.LearningRates = []float64{ro.learningRate}
	}
	if f.Changed("window") {
		cfg.Grid.Windows = []int{ro.window}
	}
	if f.Changed("hash") {
		cfg.Hashing.Algorithm = ro.hash
	}
	if f.Changed("combine") {
		cfg.Hashing.Combine = ro.combine
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	g, err := sweep.GridFromConfig(cfg)
	if err != nil {
		return err
	}
	spec := g.Expand()[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.New()
	collector, stopStats, err := setup(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer stopStats()

	checker.SetPhase(health.PhaseLoading)
	emails, err := loadEmails(ctx, cfg)
	if err != nil {
		return err
	}
	sink, err := openResults(cfg, checker)
	if err != nil {
		return err
	}
	defer closeSink(sink, &err)

	clf, err := classifier.New(spec.Kind, spec.Options)
	if err != nil {
		return err
	}
	runnerOpts := []sweep.Option{sweep.WithStats(collector)}
	if sink != nil {
		runnerOpts = append(runnerOpts, sweep.WithSink(sink))
	}
	if cfg.Cardinality.Enabled {
		checker.SetPhase(health.PhaseMeasuring)
		vocab := sweep.MeasureVocabulary(emails, []sweep.Spec{spec}, cfg.CardinalityTracker(), collector)
		runnerOpts = append(runnerOpts, sweep.WithVocabulary(vocab))
	}

	checker.SetPhase(health.PhaseEvaluating)
	res, err := sweep.NewRunner(emails, runnerOpts...).Evaluate(ctx, spec, clf)
	checker.SetPhase(health.PhaseDone)
	if err != nil {
		return err
	}
	printFinal(cmd.OutOrStdout(), res)

	if ro.dump != "" {
		if err := dumpTable(ro.dump, clf); err != nil {
			return err
		}
	}
	return nil
}

type dumper interface {
	Dump(w io.Writer) error
}

func dumpTable(path string, clf classifier.Classifier) (err error) {
	d, ok := clf.(dumper)
	if !ok {
		return fmt.Errorf("only feature hashing classifiers can be dumped")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := d.Dump(f); err != nil {
		return err
	}
	logging.Info("table written", logging.F("path", path))
	return nil
}

func printFinal(w io.Writer, res *report.Result) {
	final, ok := res.Final()
	if !ok {
		fmt.Fprintf(w, "%s: no emails evaluated\n", res.Name)
		return
	}
	fmt.Fprintf(w, "%s (%d emails, %d windows)\n", res.Name, res.Emails, len(res.Snapshots))
	for _, name := range metric.Names {
		fmt.Fprintf(w, "  %-9s %s\n", name+":", report.FormatValue(final.Get(name)))
	}
}

