// Package corpus loads labelled emails from tab-separated text files.
//
// Each non-blank line is "<label>\t<body>". Labels 1, spam and true mark spam;
// 0, ham and false mark ham. Lines starting with # are comments. Files ending
// in .gz or .zst are decompressed on the fly.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/logging"
)

// ErrMalformed is returned for a line that is not "<label>\t<body>".
var ErrMalformed = errors.New("corpus: malformed line")

// maxLine bounds a single email body.
const maxLine = 16 << 20

// Options controls loading.
type Options struct {
	Shuffle bool
	Seed    uint64
	// Limit keeps the first Limit emails after shuffling. 0 keeps all.
	Limit int
}

// Stats summarises a load.
type Stats struct {
	Files   int
	Skipped int
	Spam    int
	Ham     int
}

// Total returns the number of emails loaded.
func (s Stats) Total() int { return s.Spam + s.Ham }

// Load reads every path in order, skipping files that do not exist, then
// shuffles and truncates per opts.
func Load(ctx context.Context, paths []string, opts Options) ([]email.Email, Stats, error) {
	var (
		out   []email.Email
		stats Stats
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		start := time.Now()
		emails, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			logging.Warn("corpus file not found, skipping", logging.F("path", path))
			stats.Skipped++
			continue
		}
		if err != nil {
			return nil, stats, err
		}
		stats.Files++
		out = append(out, emails...)
		logging.Info("corpus file loaded", logging.F(
			"path", path,
			"emails", len(emails),
			"duration_ms", time.Since(start).Milliseconds(),
		))
	}

	if opts.Shuffle {
		Shuffle(out, opts.Seed)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	for _, e := range out {
		if e.Spam() {
			stats.Spam++
		} else {
			stats.Ham++
		}
	}
	return out, stats, nil
}

// LoadFile reads one corpus file.
func LoadFile(path string) ([]email.Email, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := compression.NewReader(f, compression.FromPath(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	var out []email.Email
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// ParseLine parses "<label>\t<body>".
func ParseLine(line string) (email.Email, error) {
	label, body, ok := strings.Cut(line, "\t")
	if !ok {
		return email.Email{}, fmt.Errorf("%w: missing tab", ErrMalformed)
	}
	spam, err := ParseLabel(label)
	if err != nil {
		return email.Email{}, err
	}
	return email.New(spam, body), nil
}

// ParseLabel reports whether label marks spam.
func ParseLabel(label string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "1", "spam", "true":
		return true, nil
	case "0", "ham", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown label %q", ErrMalformed, label)
	}
}

// Shuffle permutes emails deterministically for seed.
func Shuffle(emails []email.Email, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(emails), func(i, j int) {
		emails[i], emails[j] = emails[j], emails[i]
	})
}

// Write stores emails in the corpus format, compressed per cfg.
func Write(path string, emails []email.Email, cfg compression.Config) error {
	clean := strings.NewReplacer("\n", " ", "\t", " ")
	return compression.WriteFile(path, cfg, func(bw *bufio.Writer) error {
		for _, e := range emails {
			label := "0"
			if e.Spam() {
				label = "1"
			}
			if _, err := fmt.Fprintf(bw, "%s\t%s\n", label, clean.Replace(e.Body())); err != nil {
				return err
			}
		}
		return nil
	})
}
