package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/szibis/spamsketch/internal/config"
	"github.com/szibis/spamsketch/internal/health"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/metric"
	"github.com/szibis/spamsketch/internal/report"
	"github.com/szibis/spamsketch/internal/sweep"
)

func newSweepCmd(opts *options) *cobra.Command {
	var (
		parallelism int
		timeout     time.Duration
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every configuration of the parameter grid",
		Long: `Expand the grid of the configuration file (kinds, ngram_k, log_num_buckets,
num_hashes, thresholds, learning_rates, windows) and evaluate every point in
parallel. Each run owns its classifier; the corpus is shared read-only.`,
		Example: `  spamsketch sweep -c sweep.yaml -o results --sqlite results/runs.db
  spamsketch sweep -c sweep.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Parallelism = parallelism
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = config.Duration(timeout)
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			g, err := sweep.GridFromConfig(cfg)
			if err != nil {
				return err
			}
			specs := g.Expand()
			if dryRun {
				for _, s := range specs {
					fmt.Fprintln(cmd.OutOrStdout(), s.Name)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout))
				defer cancel()
			}

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

			runnerOpts := []sweep.Option{
				sweep.WithWorkers(cfg.Workers()),
				sweep.WithStats(collector),
			}
			if sink != nil {
				runnerOpts = append(runnerOpts, sweep.WithSink(sink))
			}
			if cfg.Cardinality.Enabled {
				checker.SetPhase(health.PhaseMeasuring)
				vocab := sweep.MeasureVocabulary(emails, specs, cfg.CardinalityTracker(), collector)
				runnerOpts = append(runnerOpts, sweep.WithVocabulary(vocab))
			}

			logging.Info("sweep started", logging.F(
				"runs", len(specs),
				"workers", cfg.Workers(),
				"emails", len(emails),
			))
			start := time.Now()
			checker.SetPhase(health.PhaseEvaluating)
			results, err := sweep.NewRunner(emails, runnerOpts...).Run(ctx, specs)
			checker.SetPhase(health.PhaseDone)
			printTable(cmd, results)
			sweep.LogSummary(results)
			logging.Info("sweep finished", logging.F(
				"duration_ms", time.Since(start).Milliseconds(),
			))
			return err
		},
	}
	addIOFlags(cmd, opts)
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "concurrent runs (0 uses GOMAXPROCS)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop starting new runs after this long")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the run names and exit")
	return cmd
}

func printTable(cmd *cobra.Command, results []*report.Result) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tACCURACY\tPRECISION\tRECALL")
	for _, res := range results {
		if res == nil {
			continue
		}
		final, ok := res.Final()
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Name,
			report.FormatValue(final.Get(metric.Accuracy)),
			report.FormatValue(final.Get(metric.Precision)),
			report.FormatValue(final.Get(metric.Recall)),
		)
	}
	tw.Flush()
}
