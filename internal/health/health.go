// Package health serves liveness and readiness probes for a long sweep.
// The process is live until it shuts down; it is ready while the corpus is
// loaded and runs are evaluating.
package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Phase is the stage of an evaluation.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseLoading    Phase = "loading_corpus"
	PhaseMeasuring  Phase = "measuring_vocabulary"
	PhaseEvaluating Phase = "evaluating"
	PhaseDone       Phase = "done"
)

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the JSON body returned by health endpoints.
type Response struct {
	Status     Status                    `json:"status"`
	Phase      Phase                     `json:"phase"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
	Timestamp  string                    `json:"timestamp"`
}

// CheckFunc returns nil if the component is healthy.
type CheckFunc func() error

// Checker tracks the evaluation phase and named readiness checks.
type Checker struct {
	mu           sync.RWMutex
	phase        Phase
	checks       map[string]CheckFunc
	shuttingDown atomic.Bool
}

// New creates a checker in PhaseStarting.
func New() *Checker {
	return &Checker{
		phase:  PhaseStarting,
		checks: make(map[string]CheckFunc),
	}
}

// SetPhase records the current phase.
func (c *Checker) SetPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
}

// Phase returns the current phase.
func (c *Checker) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// RegisterReadiness adds a named check run on every /ready request.
func (c *Checker) RegisterReadiness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetShuttingDown makes both probes fail.
func (c *Checker) SetShuttingDown() {
	c.shuttingDown.Store(true)
}

var errNotEvaluating = errors.New("not evaluating")

// LiveHandler serves /live.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if c.shuttingDown.Load() {
			c.writeDown(w)
			return
		}
		writeJSON(w, http.StatusOK, Response{Status: StatusUp, Phase: c.Phase(), Timestamp: now()})
	}
}

// ReadyHandler serves /ready. The phase counts as a component that is up
// only while measuring or evaluating.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if c.shuttingDown.Load() {
			c.writeDown(w)
			return
		}

		c.mu.RLock()
		phase := c.phase
		checks := make(map[string]CheckFunc, len(c.checks)+1)
		for k, v := range c.checks {
			checks[k] = v
		}
		c.mu.RUnlock()
		checks["phase"] = func() error {
			if phase == PhaseMeasuring || phase == PhaseEvaluating {
				return nil
			}
			return errNotEvaluating
		}

		overall := StatusUp
		components := make(map[string]ComponentCheck, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				overall = StatusDown
				components[name] = ComponentCheck{Status: StatusDown, Message: err.Error()}
			} else {
				components[name] = ComponentCheck{Status: StatusUp}
			}
		}

		code := http.StatusOK
		if overall == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, Response{Status: overall, Phase: phase, Components: components, Timestamp: now()})
	}
}

// Register mounts /live and /ready on mux.
func (c *Checker) Register(mux *http.ServeMux) {
	mux.Handle("/live", c.LiveHandler())
	mux.Handle("/ready", c.ReadyHandler())
}

func (c *Checker) writeDown(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, Response{
		Status:    StatusDown,
		Phase:     c.Phase(),
		Timestamp: now(),
		Components: map[string]ComponentCheck{
			"process": {Status: StatusDown, Message: "shutting down"},
		},
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
