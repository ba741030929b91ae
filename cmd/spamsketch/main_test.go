package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/config"
	"github.com/szibis/spamsketch/internal/corpus"
	"github.com/szibis/spamsketch/internal/email"
	"github.com/szibis/spamsketch/internal/health"
	"github.com/szibis/spamsketch/internal/logging"
	"github.com/szibis/spamsketch/internal/report"
)

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	var emails []email.Email
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			emails = append(emails, email.New(true, fmt.Sprintf("cheap pills offer %d", i%5)))
		} else {
			emails = append(emails, email.New(false, fmt.Sprintf("team meeting notes %d", i%5)))
		}
	}
	path := filepath.Join(dir, "corpus.txt.zst")
	require.NoError(t, corpus.Write(path, emails, compression.Config{Type: compression.TypeZstd}))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logging.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { logging.SetOutput(nil) })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "spamsketch dev")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeCorpus(t, dir)
	outDir := filepath.Join(dir, "out")
	dump := filepath.Join(dir, "weights.txt")

	out, err := execute(t, "run",
		"--corpus", path,
		"--kind", "pc-fh",
		"--log-buckets", "6",
		"--window", "10",
		"--output-dir", outDir,
		"--sqlite", filepath.Join(dir, "runs.db"),
		"--dump", dump,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "pc-fh-k1-b6-lr0.1-w10 (40 emails, 4 windows)")
	assert.Contains(t, out, "accuracy:")
	assert.FileExists(t, filepath.Join(outDir, "pc-fh-k1-b6-lr0.1-w10.recall.txt"))

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "bias "))
	assert.Equal(t, 65, strings.Count(string(data), "\n"))
}

func TestRunDumpRequiresFeatureHashing(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run",
		"--corpus", writeCorpus(t, dir),
		"--kind", "nb-cm",
		"--log-buckets", "6",
		"--window", "10",
		"--dump", filepath.Join(dir, "w.txt"),
	)
	assert.ErrorContains(t, err, "feature hashing")
}

func TestRunRejectsInvalidWindow(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--corpus", writeCorpus(t, dir), "--window", "0")
	assert.ErrorContains(t, err, "grid.windows")
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeCorpus(t, dir)
	cfgPath := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
corpus:
  paths: [%s, %s]
grid:
  kinds: [nb-fh, pc-cm]
  ngram_k: [1, 2]
  log_num_buckets: [6]
  num_hashes: [2]
  learning_rates: [0.1]
  windows: [10]
cardinality:
  mode: exact
output:
  dir: %s
memory:
  limit_ratio: 0
`, path, filepath.Join(dir, "missing.txt"), filepath.Join(dir, "out"))), 0o644))

	out, err := execute(t, "sweep", "-c", cfgPath, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"nb-fh-k1-b6-t0.5-w10",
		"nb-fh-k2-b6-t0.5-w10",
		"pc-cm-k1-b6-h2-lr0.1-w10",
		"pc-cm-k2-b6-h2-lr0.1-w10",
	}, strings.Fields(out))

	out, err = execute(t, "sweep", "-c", cfgPath, "-p", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "pc-cm-k2-b6-h2-lr0.1-w10")
	assert.FileExists(t, filepath.Join(dir, "out", "nb-fh-k2-b6-t0.5-w10.accuracy.txt"))
}

func TestGenerateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synthetic.txt.gz")
	out, err := execute(t, "generate", path, "-n", "300", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 300 emails")

	emails, err := corpus.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, emails, 300)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("grid:\n  windows: [0]\n"), 0o644))

	out, err := execute(t, "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, `"valid": false`)
	assert.Contains(t, out, "grid.windows")
}

type closeFailSink struct{ err error }

func (closeFailSink) Write(context.Context, *report.Result) error { return nil }
func (s closeFailSink) Close() error                            { return s.err }

func TestCloseSink(t *testing.T) {
	walCheckpoint := errors.New("checkpoint failed")

	var err error
	closeSink(closeFailSink{walCheckpoint}, &err)
	assert.ErrorIs(t, err, walCheckpoint)

	earlier := errors.New("run failed")
	err = earlier
	closeSink(closeFailSink{walCheckpoint}, &err)
	assert.Equal(t, earlier, err, "the command error wins over the close error")

	err = nil
	closeSink(nil, &err)
	assert.NoError(t, err)
}

func TestOpenResultsReadiness(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.SQLite = filepath.Join(dir, "runs.db")

	checker := health.New()
	checker.SetPhase(health.PhaseEvaluating)
	sink, err := openResults(cfg, checker)
	require.NoError(t, err)
	require.NotNil(t, sink)

	ready := func() int {
		rec := httptest.NewRecorder()
		checker.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, ready())

	require.NoError(t, os.RemoveAll(cfg.Output.Dir))
	assert.Equal(t, http.StatusServiceUnavailable, ready())
	require.NoError(t, sink.Close())

	none := config.Default()
	sink, err = openResults(none, health.New())
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestSetupLogsServiceVersion(t *testing.T) {
	var logs bytes.Buffer
	logging.SetOutput(&logs)
	t.Cleanup(func() { logging.SetOutput(nil) })

	cfg := config.Default()
	cfg.Memory.LimitRatio = 0
	_, stop, err := setup(context.Background(), cfg, health.New())
	require.NoError(t, err)
	defer stop()

	logging.Info("ready to evaluate")
	assert.Contains(t, logs.String(), `"service.version":"dev"`)
	assert.Contains(t, logs.String(), `"service.name":"spamsketch"`)
}
