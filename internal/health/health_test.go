package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probe(t *testing.T, h http.Handler, path string) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return rec.Code, resp
}

func TestLiveThroughoutPhases(t *testing.T) {
	c := New()
	for _, p := range []Phase{PhaseStarting, PhaseLoading, PhaseEvaluating, PhaseDone} {
		c.SetPhase(p)
		code, resp := probe(t, c.LiveHandler(), "/live")
		if code != http.StatusOK || resp.Status != StatusUp || resp.Phase != p {
			t.Errorf("phase %s: live = %d %+v", p, code, resp)
		}
	}
}

func TestReadyFollowsPhase(t *testing.T) {
	tests := []struct {
		phase Phase
		want  int
	}{
		{PhaseStarting, http.StatusServiceUnavailable},
		{PhaseLoading, http.StatusServiceUnavailable},
		{PhaseMeasuring, http.StatusOK},
		{PhaseEvaluating, http.StatusOK},
		{PhaseDone, http.StatusServiceUnavailable},
	}
	c := New()
	for _, tt := range tests {
		c.SetPhase(tt.phase)
		code, resp := probe(t, c.ReadyHandler(), "/ready")
		if code != tt.want {
			t.Errorf("phase %s: ready = %d, want %d", tt.phase, code, tt.want)
		}
		if _, ok := resp.Components["phase"]; !ok {
			t.Errorf("phase %s: response lacks phase component", tt.phase)
		}
	}
}

func TestReadyRunsChecks(t *testing.T) {
	c := New()
	c.SetPhase(PhaseEvaluating)
	c.RegisterReadiness("sqlite", func() error { return errors.New("database locked") })

	code, resp := probe(t, c.ReadyHandler(), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if resp.Components["sqlite"].Message != "database locked" {
		t.Errorf("components = %+v", resp.Components)
	}
	if resp.Components["phase"].Status != StatusUp {
		t.Errorf("phase component = %+v", resp.Components["phase"])
	}
}

func TestShuttingDown(t *testing.T) {
	c := New()
	c.SetPhase(PhaseEvaluating)
	c.SetShuttingDown()

	mux := http.NewServeMux()
	c.Register(mux)
	for _, path := range []string{"/live", "/ready"} {
		code, resp := probe(t, mux, path)
		if code != http.StatusServiceUnavailable || resp.Status != StatusDown {
			t.Errorf("%s = %d %+v", path, code, resp)
		}
	}
}
