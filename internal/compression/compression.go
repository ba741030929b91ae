// Package compression wraps corpus and result files in transparent
// gzip or zstd streams.
package compression

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents a compression algorithm.
type Type string

const (
	// TypeNone means no compression.
	TypeNone Type = "none"
	// TypeGzip uses gzip compression.
	TypeGzip Type = "gzip"
	// TypeZstd uses zstd compression.
	TypeZstd Type = "zstd"
)

// Level represents compression level settings.
type Level int

const (
	// LevelDefault uses the default compression level for the algorithm.
	LevelDefault Level = 0
	// LevelFastest uses the fastest compression (lowest ratio).
	LevelFastest Level = 1
	// LevelBest uses the best compression (highest ratio).
	LevelBest Level = 9
)

// Config holds compression configuration.
type Config struct {
	Type  Type
	Level Level
}

// ParseType parses a compression type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	default:
		return TypeNone, fmt.Errorf("unsupported compression type: %s", s)
	}
}

// Ext returns the file extension for the type, including the dot.
func (t Type) Ext() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// FromPath infers the compression type from a file name.
func FromPath(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return TypeGzip
	case ".zst", ".zstd":
		return TypeZstd
	default:
		return TypeNone
	}
}

// NewReader returns a decompressing reader over r. Closing it does not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case TypeNone, "":
		return io.NopCloser(r), nil
	case TypeGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gr, nil
	case TypeZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// NewWriter returns a compressing writer over w. Close flushes the stream
// but does not close w.
func NewWriter(w io.Writer, cfg Config) (io.WriteCloser, error) {
	switch cfg.Type {
	case TypeNone, "":
		return nopWriteCloser{w}, nil
	case TypeGzip:
		level := gzip.DefaultCompression
		switch cfg.Level {
		case LevelFastest:
			level = gzip.BestSpeed
		case LevelBest:
			level = gzip.BestCompression
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	case TypeZstd:
		level := zstd.SpeedDefault
		switch cfg.Level {
		case LevelFastest:
			level = zstd.SpeedFastest
		case LevelBest:
			level = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", cfg.Type)
	}
}

// WriteFile creates path and hands fn a buffered writer over the encoder
// selected by cfg. The encoder and the file are closed on every return
// path, so a failed write still leaves a terminated stream behind.
func WriteFile(path string, cfg Config, fn func(w *bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := NewWriter(f, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(w)
	if err := fn(bw); err != nil {
		return err
	}
	return bw.Flush()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
