// Package health serves the liveness, readiness and status probes.
package health

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"verichain/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports a dependency as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

type Handler struct {
	startTime    time.Time
	environment  string
	checkTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
	// optional checks are reported but do not fail readiness.
	optional map[string]bool
}

func New(environment string) *Handler {
	return &Handler{
		startTime:    time.Now(),
		environment:  environment,
		checkTimeout: 2 * time.Second,
		checks:       make(map[string]CheckFunc),
		optional:     make(map[string]bool),
	}
}

// RegisterCheck adds a dependency that must be up for the service to be ready.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	delete(h.optional, name)
}

// RegisterOptionalCheck adds a dependency whose outage degrades the service
// without taking it out of rotation. The custody ledger is one: verification
// pages still render from the record.
func (h *Handler) RegisterOptionalCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.optional[name] = true
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers 200 as long as the process serves HTTP.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleReadiness runs every check concurrently and answers 503 if a required one fails.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	optional := maps.Clone(h.optional)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, len(checks))
	for name, check := range checks {
		go func() {
			results <- outcome{name: name, err: check(ctx)}
		}()
	}

	response := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	ready := true
	for range checks {
		o := <-results
		switch {
		case o.err == nil:
			response.Checks[o.name] = "up"
		case optional[o.name]:
			response.Checks[o.name] = "degraded: " + o.err.Error()
		default:
			response.Checks[o.name] = "down: " + o.err.Error()
			ready = false
		}
	}

	if !ready {
		response.Status = "not_ready"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
