package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/sketch"
)

func mustNew(t *testing.T, kind Kind, opts Options) Classifier {
	t.Helper()
	clf, err := New(kind, opts)
	require.NoError(t, err)
	return clf
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)

		got, err = ParseKind(k.Short())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("svm")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		mutate func(*Options)
	}{
		{"ngram zero", KindNaiveBayesFeatureHashing, func(o *Options) { o.NgramK = 0 }},
		{"buckets zero", KindPerceptronFeatureHashing, func(o *Options) { o.LogNumBuckets = 0 }},
		{"buckets too large", KindNaiveBayesCountMin, func(o *Options) { o.LogNumBuckets = 31 }},
		{"no hashes", KindPerceptronCountMin, func(o *Options) { o.NumHashes = 0 }},
		{"threshold one", KindNaiveBayesCountMin, func(o *Options) { o.Threshold = 1 }},
		{"threshold negative", KindNaiveBayesFeatureHashing, func(o *Options) { o.Threshold = -0.1 }},
		{"learning rate zero", KindPerceptronCountMin, func(o *Options) { o.LearningRate = 0 }},
		{"learning rate nan", KindPerceptronFeatureHashing, func(o *Options) { o.LearningRate = math.NaN() }},
		{"unknown hash", KindNaiveBayesFeatureHashing, func(o *Options) { o.Hash = "sha1" }},
		{"unknown combiner", KindPerceptronCountMin, func(o *Options) { o.Combine = "mode" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			clf, err := New(tt.kind, opts)
			assert.Nil(t, clf)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestIrrelevantOptionsIgnored(t *testing.T) {
	opts := DefaultOptions()
	opts.NumHashes = 0
	opts.LearningRate = 0
	_, err := New(KindNaiveBayesFeatureHashing, opts)
	assert.NoError(t, err)

	opts = DefaultOptions()
	opts.Threshold = 0
	_, err = New(KindPerceptronFeatureHashing, opts)
	assert.NoError(t, err)
}

func TestNaiveBayesScenario(t *testing.T) {
	opts := DefaultOptions()
	opts.LogNumBuckets = 4
	opts.Threshold = 0.5
	opts.NgramK = 1
	clf, err := NewNaiveBayesFeatureHashing(opts)
	require.NoError(t, err)

	clf.Update(email.New(false, "hello world"))
	clf.Update(email.New(true, "buy now buy now"))

	spam := clf.Predict(email.New(true, "buy now"))
	ham := clf.Predict(email.New(false, "hello world"))
	assert.Greater(t, spam, ham)
}

func TestNaiveBayesUntrainedIsEven(t *testing.T) {
	for _, kind := range []Kind{KindNaiveBayesFeatureHashing, KindNaiveBayesCountMin} {
		clf := mustNew(t, kind, DefaultOptions())
		p := clf.Predict(email.New(true, "anything at all"))
		assert.InDelta(t, 0.5, p, 1e-12, kind)
		assert.False(t, clf.Classify(p), "strict threshold comparison")
	}
}

func TestNaiveBayesTotalsLaplace(t *testing.T) {
	clf, err := NewNaiveBayesCountMin(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Totals{Ham: 1, Spam: 1, NgramHam: 1, NgramSpam: 1}, clf.Totals())

	clf.Update(email.New(true, "a b c"))
	clf.Update(email.New(false, "d e"))
	assert.Equal(t, Totals{Ham: 2, Spam: 2, NgramHam: 3, NgramSpam: 4}, clf.Totals())
}

func TestNaiveBayesCountMinNoDeflation(t *testing.T) {
	opts := DefaultOptions()
	opts.LogNumBuckets = 3
	opts.NumHashes = 4
	clf, err := NewNaiveBayesCountMin(opts)
	require.NoError(t, err)

	truth := make(map[string]float64)
	for i := 0; i < 300; i++ {
		body := fmt.Sprintf("w%d w%d w%d", i%17, i%5, i%11)
		e := email.New(true, body)
		clf.Update(e)
		for g := range e.NGrams(1) {
			truth[g]++
		}
	}
	for g, n := range truth {
		// Cells start at 1, so the estimate covers the prior as well.
		assert.GreaterOrEqual(t, clf.Count(true, g), n+1, g)
	}
}

func warmUp(clf Classifier) {
	for i := 0; i < 3; i++ {
		clf.Update(email.New(true, "lorem ipsum dolor sit amet consectetur adipiscing elit sed do"))
		clf.Update(email.New(false, "meeting agenda notes tomorrow project review"))
	}
}

func TestSpamUpdateReinforces(t *testing.T) {
	opts := DefaultOptions()
	opts.LogNumBuckets = 10
	target := email.New(true, "buy cheap pills now")

	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			clf := mustNew(t, kind, opts)
			warmUp(clf)
			for i := 0; i < 5; i++ {
				before := clf.Predict(target)
				clf.Update(target)
				after := clf.Predict(target)
				assert.GreaterOrEqual(t, after, before, "update %d", i)
			}
		})
	}
}

func TestPerceptronConverges(t *testing.T) {
	spam := email.New(true, "buy cheap pills")
	ham := email.New(false, "meeting tomorrow agenda")

	variants := []struct {
		kind    Kind
		combine sketch.Combine
	}{
		{KindPerceptronFeatureHashing, sketch.CombineMin},
		{KindPerceptronCountMin, sketch.CombineMin},
		{KindPerceptronCountMin, sketch.CombineMedian},
	}
	for _, v := range variants {
		t.Run(fmt.Sprintf("%s/%s", v.kind, v.combine), func(t *testing.T) {
			opts := DefaultOptions()
			opts.LogNumBuckets = 8
			opts.LearningRate = 0.1
			opts.Combine = v.combine
			clf := mustNew(t, v.kind, opts)

			converged := false
			for i := 0; i < 50; i++ {
				clf.Update(spam)
				clf.Update(ham)
				if clf.Classify(clf.Predict(spam)) && !clf.Classify(clf.Predict(ham)) {
					converged = true
					break
				}
			}
			assert.True(t, converged, "perceptron did not separate the two emails in 50 rounds")
		})
	}
}

func TestPerceptronCorrectPredictionIsNoop(t *testing.T) {
	clf, err := NewPerceptronFeatureHashing(DefaultOptions())
	require.NoError(t, err)
	spam := email.New(true, "free money")

	clf.Update(spam)
	assert.InDelta(t, 0.1, clf.Bias(), 1e-12)
	assert.InDelta(t, 0.1, clf.Weight("free"), 1e-12)

	// Margin is now positive, so another spam update changes nothing.
	clf.Update(spam)
	assert.InDelta(t, 0.1, clf.Bias(), 1e-12)
	assert.InDelta(t, 0.3, clf.Predict(spam), 1e-12)
}

func TestPerceptronMistakeDoubleStep(t *testing.T) {
	clf, err := NewPerceptronFeatureHashing(DefaultOptions())
	require.NoError(t, err)
	clf.Update(email.New(true, "offer"))
	// Ham email predicted as spam: error is -1 - 1 = -2.
	clf.Update(email.New(false, "offer"))
	assert.InDelta(t, -0.1, clf.Bias(), 1e-12)
	assert.InDelta(t, -0.1, clf.Weight("offer"), 1e-12)
}

func TestPerceptronCountMinUsesMinimum(t *testing.T) {
	train := func(combine sketch.Combine) *Perceptron {
		opts := DefaultOptions()
		opts.LogNumBuckets = 1
		opts.NumHashes = 4
		opts.Combine = combine
		clf, err := NewPerceptronCountMin(opts)
		require.NoError(t, err)
		tokens := strings.Fields("a b c d e f g h i j k l m n o p")
		for i := range tokens {
			// Overlapping token pairs with alternating labels leave a
			// different sum in each cell.
			body := tokens[i] + " " + tokens[(i+3)%len(tokens)]
			clf.Update(email.New(i%2 == 0, body))
		}
		return clf
	}
	cells := func(clf *Perceptron, gram string) []float64 {
		cm, ok := clf.weights.(*sketch.CountMin)
		require.True(t, ok, "count-min perceptron should keep a *sketch.CountMin")
		return cm.RowValues(gram)
	}

	minClf := train(DefaultOptions().Combine)
	medClf := train(sketch.CombineMedian)
	separated := false
	for _, gram := range strings.Fields("a b c d e f g h i j k l m n o p") {
		rows := cells(minClf, gram)
		lowest := slices.Min(rows)
		assert.Equal(t, lowest, minClf.Weight(gram), "weight of %q should be its smallest row %v", gram, rows)
		if lowest < sketch.CombineMedian.Reduce(slices.Clone(rows)) {
			separated = true
		}

		medRows := cells(medClf, gram)
		assert.InDelta(t, sketch.CombineMedian.Reduce(slices.Clone(medRows)), medClf.Weight(gram), 1e-12,
			"median twin weight of %q", gram)
	}
	require.True(t, separated, "training should leave some token whose rows disagree")
}

func TestDeterministicPredictions(t *testing.T) {
	stream := []email.Email{
		email.New(true, "win a free cruise now"),
		email.New(false, "lunch at noon?"),
		email.New(true, "cheap meds online"),
		email.New(false, "quarterly report attached"),
		email.New(true, "free cruise winner"),
	}
	opts := DefaultOptions()
	opts.LogNumBuckets = 6
	opts.NgramK = 2
	for _, kind := range Kinds {
		a := mustNew(t, kind, opts)
		b := mustNew(t, kind, opts)
		for _, e := range stream {
			pa, pb := a.Predict(e), b.Predict(e)
			if math.Float64bits(pa) != math.Float64bits(pb) {
				t.Fatalf("%s: predictions diverged: %v vs %v", kind, pa, pb)
			}
			a.Update(e)
			b.Update(e)
		}
	}
}

func TestNaiveBayesStableUnderImbalance(t *testing.T) {
	clf, err := NewNaiveBayesFeatureHashing(DefaultOptions())
	require.NoError(t, err)
	spam := email.New(true, "x x x x x x x x x x")
	for i := 0; i < 200000; i++ {
		clf.Update(spam)
	}
	clf.Update(email.New(false, "y"))

	for _, body := range []string{"x", "y", "x y", strings.Repeat("z ", 500)} {
		p := clf.Predict(email.New(false, body))
		require.False(t, math.IsNaN(p), body)
		assert.GreaterOrEqual(t, p, 0.0, body)
		assert.LessOrEqual(t, p, 1.0, body)
	}
	assert.Greater(t, clf.Predict(email.New(false, "x")), 0.5)
}

func TestLogAddExp(t *testing.T) {
	assert.InDelta(t, math.Log(5), logAddExp(math.Log(2), math.Log(3)), 1e-12)
	assert.InDelta(t, 1000+math.Log(2), logAddExp(1000, 1000), 1e-9)
	assert.False(t, math.IsInf(logAddExp(800, 1), 0))

	var sink float64
	allocs := testing.AllocsPerRun(100, func() { sink += logAddExp(-3, -4) })
	assert.Zero(t, allocs, "logAddExp should not allocate")
	assert.False(t, math.IsNaN(sink))
}

func TestDump(t *testing.T) {
	opts := DefaultOptions()
	opts.LogNumBuckets = 2

	nb, err := NewNaiveBayesFeatureHashing(opts)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, nb.Dump(&buf))
	assert.Equal(t, "w0 1, 1\nw1 1, 1\nw2 1, 1\nw3 1, 1\n", buf.String())

	pc, err := NewPerceptronFeatureHashing(opts)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, pc.Dump(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "bias 0", lines[0])
	assert.Len(t, lines, 5)
}
