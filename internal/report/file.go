package report

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/metric"
)

// FileSink writes <dir>/<run>.<metric>.txt for every metric. Each file holds
// key=value property lines followed by one value per window.
type FileSink struct {
	dir         string
	compression compression.Config
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string, cfg compression.Config) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	return &FileSink{dir: dir, compression: cfg}, nil
}

// Path returns the file a run's metric is written to.
func (s *FileSink) Path(run string, name metric.Name) string {
	return filepath.Join(s.dir, run+"."+string(name)+".txt"+s.compression.Type.Ext())
}

// Write writes one file per metric.
func (s *FileSink) Write(ctx context.Context, r *Result) error {
	for _, name := range metric.Names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeMetric(r, name); err != nil {
			return fmt.Errorf("writing %s %s: %w", r.Name, name, err)
		}
	}
	return nil
}

func (s *FileSink) writeMetric(r *Result, name metric.Name) error {
	return compression.WriteFile(s.Path(r.Name, name), s.compression, func(bw *bufio.Writer) error {
		fmt.Fprintf(bw, "run=%s\n", r.Name)
		fmt.Fprintf(bw, "id=%s\n", r.ID)
		fmt.Fprintf(bw, "kind=%s\n", r.Kind)
		fmt.Fprintf(bw, "metric=%s\n", name)
		for _, k := range r.ParamKeys() {
			fmt.Fprintf(bw, "%s=%s\n", k, r.Params[k])
		}
		for _, v := range r.Series(name) {
			bw.WriteString(FormatValue(v))
			bw.WriteByte('\n')
		}
		return nil
	})
}

// FormatValue renders a metric value; NaN becomes "nan".
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Ping checks that the output directory still exists.
func (s *FileSink) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op; every file is closed after it is written.
func (s *FileSink) Close() error { return nil }
