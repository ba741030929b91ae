// Package config loads the YAML configuration for evaluation runs and sweeps.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/szibis/spamsketch/internal/cardinality"
	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/hashing"
	"github.com/szibis/spamsketch/internal/sketch"
)

// Config holds the full configuration.
type Config struct {
	Corpus      CorpusConfig      `yaml:"corpus"`
	Grid        GridConfig        `yaml:"grid"`
	Hashing     HashingConfig     `yaml:"hashing"`
	Cardinality CardinalityConfig `yaml:"cardinality"`
	Output      OutputConfig      `yaml:"output"`
	Stats       StatsConfig       `yaml:"stats"`
	Memory      MemoryConfig      `yaml:"memory"`

	// Parallelism caps concurrent runs in a sweep. 0 uses GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
	// Timeout bounds a whole sweep. 0 disables it.
	Timeout  Duration `yaml:"timeout"`
	LogLevel string   `yaml:"log_level"`

	// ConfigFile is the path the config was loaded from, if any.
	ConfigFile string `yaml:"-"`
}

// CorpusConfig describes the labelled email input.
type CorpusConfig struct {
	Paths       []string `yaml:"paths"`
	Shuffle     bool     `yaml:"shuffle"`
	ShuffleSeed uint64   `yaml:"shuffle_seed"`
	// Limit keeps only the first Limit emails after shuffling. 0 keeps all.
	Limit int `yaml:"limit"`
}

// GridConfig lists the values of each sweep axis. A single run uses the
// first value of every axis.
type GridConfig struct {
	Kinds         []string  `yaml:"kinds"`
	NgramK        []int     `yaml:"ngram_k"`
	LogNumBuckets []int     `yaml:"log_num_buckets"`
	NumHashes     []int     `yaml:"num_hashes"`
	Thresholds    []float64 `yaml:"thresholds"`
	LearningRates []float64 `yaml:"learning_rates"`
	Windows       []int     `yaml:"windows"`
}

// HashingConfig selects the bucket hash.
type HashingConfig struct {
	Algorithm string `yaml:"algorithm"`
	Seed      uint64 `yaml:"seed"`
	Combine   string `yaml:"combine"`
}

// CardinalityConfig configures the distinct n-gram diagnostics.
type CardinalityConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Mode              string  `yaml:"mode"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
	HybridThreshold   int64   `yaml:"hybrid_threshold"`
}

// OutputConfig selects where run results go. Empty Dir and SQLite print a
// summary only.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	Compression      string `yaml:"compression"`
	CompressionLevel int    `yaml:"compression_level"`
	SQLite           string `yaml:"sqlite"`
}

// StatsConfig configures the Prometheus endpoint.
type StatsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the server.
	Addr string `yaml:"addr"`
}

// MemoryConfig holds memory limit configuration.
type MemoryConfig struct {
	// LimitRatio is the share of the container memory limit used for
	// GOMEMLIMIT (0.0-1.0). 0 leaves GOMEMLIMIT alone.
	LimitRatio float64 `yaml:"limit_ratio"`
}

// Duration is a time.Duration that reads and writes "30s" style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration of the original experiment: every
// variant over unigrams with 2^16 buckets, windows of 1000 emails.
func Default() *Config {
	opts := classifier.DefaultOptions()
	kinds := make([]string, len(classifier.Kinds))
	for i, k := range classifier.Kinds {
		kinds[i] = string(k)
	}
	card := cardinality.DefaultConfig()
	return &Config{
		Corpus: CorpusConfig{
			Shuffle:     true,
			ShuffleSeed: 12,
		},
		Grid: GridConfig{
			Kinds:         kinds,
			NgramK:        []int{opts.NgramK},
			LogNumBuckets: []int{opts.LogNumBuckets},
			NumHashes:     []int{opts.NumHashes},
			Thresholds:    []float64{opts.Threshold},
			LearningRates: []float64{opts.LearningRate},
			Windows:       []int{1000},
		},
		Hashing: HashingConfig{
			Algorithm: string(hashing.AlgorithmMetro),
			Seed:      hashing.DefaultSeed,
			Combine:   string(sketch.CombineMin),
		},
		Cardinality: CardinalityConfig{
			Enabled:           true,
			Mode:              card.Mode.String(),
			ExpectedItems:     card.ExpectedItems,
			FalsePositiveRate: card.FalsePositiveRate,
			HybridThreshold:   card.HybridThreshold,
		},
		Output: OutputConfig{
			Compression: string(compression.TypeNone),
		},
		Memory:   MemoryConfig{LimitRatio: 0.9},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}

// Parse decodes YAML over the defaults. Keys absent from data keep their
// default values; lists present in data replace the default list.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Workers returns the effective sweep parallelism.
func (c *Config) Workers() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// CardinalityTracker returns the tracker configuration. Call Validate first;
// an unknown mode falls back to hll.
func (c *Config) CardinalityTracker() cardinality.Config {
	mode, _ := cardinality.ParseMode(c.Cardinality.Mode)
	return cardinality.Config{
		Mode:              mode,
		ExpectedItems:     c.Cardinality.ExpectedItems,
		FalsePositiveRate: c.Cardinality.FalsePositiveRate,
		HybridThreshold:   c.Cardinality.HybridThreshold,
	}
}

// OutputCompression returns the result file compression.
func (c *Config) OutputCompression() compression.Config {
	t, _ := compression.ParseType(c.Output.Compression)
	return compression.Config{Type: t, Level: compression.Level(c.Output.CompressionLevel)}
}

// BaseOptions returns classifier options carrying the hashing settings and
// the first value of every grid axis.
func (c *Config) BaseOptions() classifier.Options {
	opts := classifier.DefaultOptions()
	if h, err := hashing.ParseAlgorithm(c.Hashing.Algorithm); err == nil {
		opts.Hash = h
	}
	if cb, err := sketch.ParseCombine(c.Hashing.Combine); err == nil {
		opts.Combine = cb
	}
	opts.Seed = c.Hashing.Seed
	if len(c.Grid.NgramK) > 0 {
		opts.NgramK = c.Grid.NgramK[0]
	}
	if len(c.Grid.LogNumBuckets) > 0 {
		opts.LogNumBuckets = c.Grid.LogNumBuckets[0]
	}
	if len(c.Grid.NumHashes) > 0 {
		opts.NumHashes = c.Grid.NumHashes[0]
	}
	if len(c.Grid.Thresholds) > 0 {
		opts.Threshold = c.Grid.Thresholds[0]
	}
	if len(c.Grid.LearningRates) > 0 {
		opts.LearningRate = c.Grid.LearningRates[0]
	}
	return opts
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
