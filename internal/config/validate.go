package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/szibis/spamsketch/internal/cardinality"
	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/hashing"
	"github.com/szibis/spamsketch/internal/sketch"
)

// ValidationSeverity indicates the severity of a validation issue.
type ValidationSeverity string

const (
	// SeverityError indicates a configuration error that prevents a run.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a potential issue that won't prevent a run.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	Field    string             `json:"field"`
	Message  string             `json:"message"`
}

// ValidationResult holds the complete validation output.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	File   string            `json:"file"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// JSON returns the validation result as formatted JSON.
func (r *ValidationResult) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

type issues []ValidationIssue

func (is *issues) errorf(field, format string, args ...interface{}) {
	*is = append(*is, ValidationIssue{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (is *issues) warnf(field, format string, args ...interface{}) {
	*is = append(*is, ValidationIssue{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every field and returns all findings, errors and warnings.
func (c *Config) Validate() []ValidationIssue {
	var is issues

	if len(c.Corpus.Paths) == 0 {
		is.errorf("corpus.paths", "at least one corpus file is required")
	}
	for i, p := range c.Corpus.Paths {
		if _, err := os.Stat(p); err != nil {
			// Missing files are skipped at load time.
			is.warnf(fmt.Sprintf("corpus.paths[%d]", i), "file not found: %s", p)
		}
	}
	if c.Corpus.Limit < 0 {
		is.errorf("corpus.limit", "must be >= 0, got %d", c.Corpus.Limit)
	}

	c.validateGrid(&is)

	if _, err := hashing.ParseAlgorithm(c.Hashing.Algorithm); err != nil {
		is.errorf("hashing.algorithm", "%v", err)
	}
	if _, err := sketch.ParseCombine(c.Hashing.Combine); err != nil {
		is.errorf("hashing.combine", "%v", err)
	}

	if _, err := cardinality.ParseMode(c.Cardinality.Mode); err != nil {
		is.errorf("cardinality.mode", "%v", err)
	}
	if c.Cardinality.FalsePositiveRate <= 0 || c.Cardinality.FalsePositiveRate >= 1 {
		is.errorf("cardinality.false_positive_rate", "must be in (0, 1), got %g", c.Cardinality.FalsePositiveRate)
	}
	if c.Cardinality.ExpectedItems == 0 {
		is.errorf("cardinality.expected_items", "must be positive")
	}

	if _, err := compression.ParseType(c.Output.Compression); err != nil {
		is.errorf("output.compression", "%v", err)
	}
	if c.Output.CompressionLevel < 0 || c.Output.CompressionLevel > 9 {
		is.errorf("output.compression_level", "must be between 0 and 9, got %d", c.Output.CompressionLevel)
	}
	if c.Output.Dir == "" && c.Output.SQLite == "" {
		is.warnf("output", "no output dir or sqlite database, results are only logged")
	}

	if c.Memory.LimitRatio < 0 || c.Memory.LimitRatio > 1 {
		is.errorf("memory.limit_ratio", "must be between 0.0 and 1.0, got %g", c.Memory.LimitRatio)
	}
	if c.Parallelism < 0 {
		is.errorf("parallelism", "must be >= 0, got %d", c.Parallelism)
	}
	if c.Timeout < 0 {
		is.errorf("timeout", "must be >= 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		is.errorf("log_level", "unknown level %q", c.LogLevel)
	}
	return is
}

func (c *Config) validateGrid(is *issues) {
	g := c.Grid
	axes := []struct {
		field string
		n     int
	}{
		{"grid.kinds", len(g.Kinds)},
		{"grid.ngram_k", len(g.NgramK)},
		{"grid.log_num_buckets", len(g.LogNumBuckets)},
		{"grid.windows", len(g.Windows)},
	}
	for _, a := range axes {
		if a.n == 0 {
			is.errorf(a.field, "must list at least one value")
		}
	}

	var bayes, perceptron, countMin bool
	seen := make(map[classifier.Kind]bool, len(g.Kinds))
	for i, s := range g.Kinds {
		k, err := classifier.ParseKind(s)
		if err != nil {
			is.errorf(fmt.Sprintf("grid.kinds[%d]", i), "%v", err)
			continue
		}
		if seen[k] {
			is.errorf(fmt.Sprintf("grid.kinds[%d]", i), "%s is listed more than once", k.Short())
		}
		seen[k] = true
		bayes = bayes || k.IsBayes()
		perceptron = perceptron || !k.IsBayes()
		countMin = countMin || k.IsCountMin()
	}
	if countMin && len(g.NumHashes) == 0 {
		is.errorf("grid.num_hashes", "count-min kinds need at least one value")
	}
	if bayes && len(g.Thresholds) == 0 {
		is.errorf("grid.thresholds", "naive bayes kinds need at least one value")
	}
	if perceptron && len(g.LearningRates) == 0 {
		is.errorf("grid.learning_rates", "perceptron kinds need at least one value")
	}

	for _, k := range g.NgramK {
		if k < 1 {
			is.errorf("grid.ngram_k", "must be at least 1, got %d", k)
		}
	}
	for _, b := range g.LogNumBuckets {
		if b < 1 || b > sketch.MaxLogBuckets {
			is.errorf("grid.log_num_buckets", "must be in [1, %d], got %d", sketch.MaxLogBuckets, b)
		} else if b > 26 {
			is.warnf("grid.log_num_buckets", "2^%d float64 cells per table use %d MiB", b, (8<<b)>>20)
		}
	}
	for _, h := range g.NumHashes {
		if h < 1 {
			is.errorf("grid.num_hashes", "must be at least 1, got %d", h)
		}
	}
	for _, th := range g.Thresholds {
		if th <= 0 || th >= 1 {
			is.errorf("grid.thresholds", "must be in (0, 1), got %g", th)
		}
	}
	for _, lr := range g.LearningRates {
		if lr <= 0 {
			is.errorf("grid.learning_rates", "must be positive, got %g", lr)
		}
	}
	for _, w := range g.Windows {
		if w < 1 {
			is.errorf("grid.windows", "must be at least 1, got %d", w)
		}
	}

	// Repeated values expand into runs with the same name.
	checkUnique(is, "grid.ngram_k", g.NgramK)
	checkUnique(is, "grid.log_num_buckets", g.LogNumBuckets)
	checkUnique(is, "grid.num_hashes", g.NumHashes)
	checkUnique(is, "grid.thresholds", g.Thresholds)
	checkUnique(is, "grid.learning_rates", g.LearningRates)
	checkUnique(is, "grid.windows", g.Windows)
}

func checkUnique[T int | float64](is *issues, field string, vals []T) {
	seen := make(map[T]bool, len(vals))
	for _, v := range vals {
		if seen[v] {
			is.errorf(field, "value %v is listed more than once", v)
			return
		}
		seen[v] = true
	}
}

// Err returns the validation errors joined, or nil. Warnings are ignored.
func (c *Config) Err() error {
	var errs []error
	for _, is := range c.Validate() {
		if is.Severity == SeverityError {
			errs = append(errs, fmt.Errorf("%s: %s", is.Field, is.Message))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
}

// ValidateFile loads a YAML config file and validates it, returning structured results.
func ValidateFile(path string) *ValidationResult {
	result := &ValidationResult{
		Valid: true,
		File:  path,
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "file",
			Message:  fmt.Sprintf("cannot access file: %v", err),
		})
		return result
	}
	if info.IsDir() {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "file",
			Message:  "path is a directory, expected a file",
		})
		return result
	}

	cfg, err := Load(path)
	if err != nil {
		result.Valid = false
		result.Issues = append(result.Issues, ValidationIssue{
			Severity: SeverityError,
			Field:    "yaml",
			Message:  fmt.Sprintf("YAML parse error: %v", err),
		})
		return result
	}

	result.Issues = cfg.Validate()
	for _, is := range result.Issues {
		if is.Severity == SeverityError {
			result.Valid = false
			break
		}
	}
	return result
}
