// Package sweep expands a parameter grid into runs and evaluates them in
// parallel.
package sweep

import (
	"fmt"
	"strconv"

	"github.com/szibis/spamsketch/internal/classifier"
	"github.com/szibis/spamsketch/internal/config"
)

// Grid lists the values of each axis. Axes that do not apply to a kind are
// not expanded for it.
type Grid struct {
	Kinds         []classifier.Kind
	NgramK        []int
	LogNumBuckets []int
	NumHashes     []int
	Thresholds    []float64
	LearningRates []float64
	Windows       []int

	// Base carries the hashing settings shared by every run.
	Base classifier.Options
}

// GridFromConfig builds the grid from a validated configuration.
func GridFromConfig(cfg *config.Config) (Grid, error) {
	g := Grid{
		NgramK:        cfg.Grid.NgramK,
		LogNumBuckets: cfg.Grid.LogNumBuckets,
		NumHashes:     cfg.Grid.NumHashes,
		Thresholds:    cfg.Grid.Thresholds,
		LearningRates: cfg.Grid.LearningRates,
		Windows:       cfg.Grid.Windows,
		Base:          cfg.BaseOptions(),
	}
	for _, s := range cfg.Grid.Kinds {
		k, err := classifier.ParseKind(s)
		if err != nil {
			return Grid{}, err
		}
		g.Kinds = append(g.Kinds, k)
	}
	return g, nil
}

// Spec is one point of the grid.
type Spec struct {
	Name    string
	Kind    classifier.Kind
	Options classifier.Options
	Window  int
}

// Rows returns the number of hashed rows per table.
func (s Spec) Rows() int {
	if s.Kind.IsCountMin() {
		return s.Options.NumHashes
	}
	return 1
}

// Buckets returns the cells per row.
func (s Spec) Buckets() int {
	return 1 << s.Options.LogNumBuckets
}

// Params returns the parameters that apply to the run's kind.
func (s Spec) Params() map[string]string {
	p := map[string]string{
		"kind":            string(s.Kind),
		"ngram_k":         strconv.Itoa(s.Options.NgramK),
		"log_num_buckets": strconv.Itoa(s.Options.LogNumBuckets),
		"window":          strconv.Itoa(s.Window),
		"hash":            string(s.Options.Hash),
		"seed":            strconv.FormatUint(s.Options.Seed, 10),
	}
	if s.Kind.IsCountMin() {
		p["num_hashes"] = strconv.Itoa(s.Options.NumHashes)
	}
	if s.Kind.IsBayes() {
		p["threshold"] = strconv.FormatFloat(s.Options.Threshold, 'g', -1, 64)
	} else {
		p["learning_rate"] = strconv.FormatFloat(s.Options.LearningRate, 'g', -1, 64)
		if s.Kind.IsCountMin() {
			p["combine"] = string(s.Options.Combine)
		}
	}
	return p
}

func (s Spec) name() string {
	o := s.Options
	name := fmt.Sprintf("%s-k%d-b%d", s.Kind.Short(), o.NgramK, o.LogNumBuckets)
	if s.Kind.IsCountMin() {
		name += fmt.Sprintf("-h%d", o.NumHashes)
	}
	if s.Kind.IsBayes() {
		name += fmt.Sprintf("-t%g", o.Threshold)
	} else {
		name += fmt.Sprintf("-lr%g", o.LearningRate)
	}
	return name + fmt.Sprintf("-w%d", s.Window)
}

// Expand returns the cartesian product in axis order: kind, ngram_k,
// log_num_buckets, num_hashes, threshold or learning rate, window. Names
// are stable across calls. Repeated axis values yield one spec.
func (g Grid) Expand() []Spec {
	var out []Spec
	seen := make(map[string]bool)
	for _, kind := range g.Kinds {
		hashes := []int{g.Base.NumHashes}
		if kind.IsCountMin() {
			hashes = g.NumHashes
		}
		thresholds := []float64{g.Base.Threshold}
		rates := []float64{g.Base.LearningRate}
		if kind.IsBayes() {
			thresholds = g.Thresholds
		} else {
			rates = g.LearningRates
		}

		for _, k := range g.NgramK {
			for _, b := range g.LogNumBuckets {
				for _, h := range hashes {
					for _, th := range thresholds {
						for _, lr := range rates {
							for _, w := range g.Windows {
								opts := g.Base
								opts.NgramK = k
								opts.LogNumBuckets = b
								opts.NumHashes = h
								opts.Threshold = th
								opts.LearningRate = lr
								spec := Spec{Kind: kind, Options: opts, Window: w}
								spec.Name = spec.name()
								if seen[spec.Name] {
									continue
								}
								seen[spec.Name] = true
								out = append(out, spec)
							}
						}
					}
				}
			}
		}
	}
	return out
}

// NgramOrders returns the distinct n-gram orders in the specs, in first-seen
// order.
func NgramOrders(specs []Spec) []int {
	seen := make(map[int]bool)
	var out []int
	for _, s := range specs {
		if !seen[s.Options.NgramK] {
			seen[s.Options.NgramK] = true
			out = append(out, s.Options.NgramK)
		}
	}
	return out
}
