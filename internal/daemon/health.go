package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status      HealthStatus `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
	Uptime      string       `json:"uptime"`
	Version     string       `json:"version"`
	LastRunAt   *time.Time   `json:"last_run_at,omitempty"`
	LastOutcome string       `json:"last_outcome,omitempty"`
}

// runTracker remembers the most recent pipeline outcome for health
// reporting.
type runTracker struct {
	mu      sync.RWMutex
	at      time.Time
	outcome string
}

func (r *runTracker) record(outcome string) {
	r.mu.Lock()
	r.at = time.Now().UTC()
	r.outcome = outcome
	r.mu.Unlock()
}

func (r *runTracker) snapshot() (time.Time, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.at, r.outcome
}

// health reports the daemon state. Degraded means the daemon is up but
// the most recent pipeline run failed.
func (d *Daemon) health() *HealthResponse {
	at, outcome := d.lastRun.snapshot()

	resp := &HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(d.startTime).String(),
		Version:     version.Version,
		LastOutcome: outcome,
	}
	if !at.IsZero() {
		resp.LastRunAt = &at
	}
	if outcome == "failed" {
		resp.Status = HealthStatusDegraded
	}
	return resp
}

// HealthHandler serves the daemon health summary.
func (d *Daemon) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(d.health()); err != nil {
		slog.Warn("Failed to encode health response", logfields.Error(err))
	}
}
