package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/spf13/cobra"

	"github.com/szibis/spamsketch/internal/config"
	"github.com/szibis/spamsketch/internal/corpus"
	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/health"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/report"
	"github.com/szibis/spamsketch/internal/stats"
)

var (
	version = "dev"
	commit  = "none"
)

// options holds flags shared by run and sweep.
type options struct {
	configFile  string
	logLevel    string
	corpus      []string
	limit       int
	outputDir   string
	compression string
	sqlite      string
	statsAddr   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "spamsketch",
		Short:         "Streaming spam classifiers over hashed feature tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newValidateCmd(),
		newGenerateCmd(),
		newVersionCmd(),
	)
	return root
}

func addIOFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringSliceVar(&opts.corpus, "corpus", nil, "corpus files, label<TAB>body per line (.gz and .zst accepted)")
	f.IntVar(&opts.limit, "limit", 0, "keep only the first N emails after shuffling")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for per-metric result files")
	f.StringVar(&opts.compression, "compression", "", "result file compression (none, gzip, zstd)")
	f.StringVar(&opts.sqlite, "sqlite", "", "SQLite database for run results")
	f.StringVar(&opts.statsAddr, "stats-addr", "", "listen address for Prometheus /metrics")
}

// loadConfig reads the config file, applies flag overrides and validates.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("corpus") {
		cfg.Corpus.Paths = opts.corpus
	}
	if f.Changed("limit") {
		cfg.Corpus.Limit = opts.limit
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if f.Changed("compression") {
		cfg.Output.Compression = opts.compression
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLite = opts.sqlite
	}
	if f.Changed("stats-addr") {
		cfg.Stats.Addr = opts.statsAddr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func checkConfig(cfg *config.Config) error {
	for _, is := range cfg.Validate() {
		if is.Severity == config.SeverityWarning {
			logging.Warn("configuration warning", logging.F("field", is.Field, "message", is.Message))
		}
	}
	return cfg.Err()
}

// setup applies process-wide settings and starts the stats server. The
// returned stop function shuts the server down.
func setup(ctx context.Context, cfg *config.Config, checker *health.Checker) (*stats.Collector, func(), error) {
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetResource(map[string]string{
		"service.name":    "spamsketch",
		"service.version": version,
	})

	if cfg.Memory.LimitRatio > 0 {
		limit, err := memlimit.SetGoMemLimitWithOpts(
			memlimit.WithRatio(cfg.Memory.LimitRatio),
			memlimit.WithProvider(memlimit.FromCgroup),
		)
		if err != nil {
			logging.Debug("GOMEMLIMIT not set", logging.F("error", err.Error()))
		} else {
			logging.Info("GOMEMLIMIT set", logging.F("bytes", limit, "ratio", cfg.Memory.LimitRatio))
		}
	}

	collector := stats.NewCollector()
	if cfg.Stats.Addr == "" {
		return collector, func() {}, nil
	}

	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Serve(srvCtx, cfg.Stats.Addr, checker); err != nil {
			logging.Error("stats server failed", logging.F("error", err.Error()))
		}
	}()
	go collector.StartPeriodicLogging(srvCtx, 30*time.Second)
	return collector, func() {
		cancel()
		<-done
	}, nil
}

func loadEmails(ctx context.Context, cfg *config.Config) ([]email.Email, error) {
	emails, st, err := corpus.Load(ctx, cfg.Corpus.Paths, corpus.Options{
		Shuffle: cfg.Corpus.Shuffle,
		Seed:    cfg.Corpus.ShuffleSeed,
		Limit:   cfg.Corpus.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("no emails loaded from %s", strings.Join(cfg.Corpus.Paths, ", "))
	}
	logging.Info("corpus ready", logging.F(
		"emails", st.Total(),
		"spam", st.Spam,
		"ham", st.Ham,
		"files", st.Files,
		"skipped_files", st.Skipped,
	))
	return emails, nil
}

// openResults opens the result sinks and makes readiness depend on them
// staying reachable.
func openResults(cfg *config.Config, checker *health.Checker) (report.Sink, error) {
	sink, err := openSinks(cfg)
	if err != nil || sink == nil {
		return sink, err
	}
	checker.RegisterReadiness("results", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return report.Ping(ctx, sink)
	})
	return sink, nil
}

// closeSink closes sink and reports its error through err unless the
// command already failed.
func closeSink(sink report.Sink, err *error) {
	if sink == nil {
		return
	}
	if cerr := sink.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("closing result sinks: %w", cerr)
	}
}

// openSinks returns the configured result sinks, or nil when none are set.
func openSinks(cfg *config.Config) (report.Sink, error) {
	var sinks report.Multi
	if cfg.Output.Dir != "" {
		fs, err := report.NewFileSink(cfg.Output.Dir, cfg.OutputCompression())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Output.SQLite != "" {
		db, err := report.OpenSQLite(cfg.Output.SQLite)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spamsketch %s (commit %s)\n", version, commit)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file and print the findings as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := config.ValidateFile(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), result.JSON())
			if !result.Valid {
				return fmt.Errorf("%s is not valid", args[0])
			}
			return nil
		},
	}
}
