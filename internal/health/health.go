// Package health serves the control API's liveness and readiness probes.
//
//   - /healthz reports that the client process is up.
//   - /readyz runs the registered checks (persistence store, credit balance)
//     and fails with 503 when any of them does.
//
// The readiness body lists every check so an operator can see which
// dependency is holding the client back:
//
//	{"status":"fail","checks":{"store":{"status":"ok"},"credits":{"status":"fail","error":"..."}}}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker is one named readiness probe.
type Checker struct {
	// Name keys the check in the /readyz response.
	Name string

	// Check returns nil when the dependency can serve the next session.
	// It must respect context cancellation.
	Check func(ctx context.Context) error
}

// CheckResult is one check's outcome in the /readyz body.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response is the body of both probe endpoints.
type Response struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The check list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	timeout  time.Duration
	checkers []Checker
}

// New builds a Handler over the given checks. Each check gets up to five
// seconds per request; use [WithTimeout] to change that.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{timeout: 5 * time.Second, checkers: c}
}

// WithTimeout returns a copy of the handler with a different per-check
// deadline.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	return &Handler{timeout: d, checkers: h.checkers}
}

// Healthz answers the liveness probe. A process that reaches this handler
// can serve HTTP, which is all liveness asks.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: "ok"})
}

// Readyz answers the readiness probe: 200 when every check passes, 503 with
// the failing checks named otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.run(r.Context())

	res := Response{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// run evaluates the checks in registration order, each under its own
// deadline derived from ctx.
func (h *Handler) run(ctx context.Context) (map[string]CheckResult, bool) {
	checks := make(map[string]CheckResult, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			checks[c.Name] = CheckResult{Status: "fail", Error: err.Error()}
			ready = false
			continue
		}
		checks[c.Name] = CheckResult{Status: "ok"}
	}
	return checks, ready
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
