// Package status serves the daemon's own liveness and metrics endpoints.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jerkytreats/handyman/internal/config"
	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/logging"
)

// HealthStatus represents the status of a component
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Components map[string]HealthStatus `json:"components"`
}

// Handler handles health check HTTP requests
type Handler struct {
	configs []*configuration.Configuration
	started time.Time
	now     func() time.Time

	mu   sync.Mutex
	lost map[*configuration.Configuration]bool
}

// NewHandler creates a health handler describing the loaded configurations.
func NewHandler(configs []*configuration.Configuration) *Handler {
	logging.Info("Initializing health check handler for %d configurations", len(configs))
	return &Handler{
		configs: configs,
		started: time.Now(),
		now:     time.Now,
		lost:    make(map[*configuration.Configuration]bool),
	}
}

// RunnerLost marks cfg as no longer being evaluated.
func (h *Handler) RunnerLost(cfg *configuration.Configuration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lost[cfg] = true
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.buildHealthResponse()); err != nil {
		logging.Warn("Failed to write health response: %v", err)
	}
}

// buildHealthResponse reports one component per configuration
func (h *Handler) buildHealthResponse() HealthResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	components := make(map[string]HealthStatus, len(h.configs)+1)
	for _, cfg := range h.configs {
		key := cfg.DisplayName()
		if _, taken := components[key]; taken || key == "scheduler" {
			key = fmt.Sprintf("%s (%s)", key, cfg.Source)
		}
		if h.lost[cfg] {
			components[key] = HealthStatus{
				Status:  "error",
				Message: "runner lost, " + describe(cfg),
			}
			continue
		}
		components[key] = HealthStatus{
			Status:  "running",
			Message: describe(cfg),
		}
	}

	status := "healthy"
	scheduler := HealthStatus{
		Status:  "healthy",
		Message: fmt.Sprintf("%d configurations running", len(h.configs)),
	}
	if n := len(h.lost); n > 0 {
		status = "degraded"
		scheduler = HealthStatus{
			Status:  "warning",
			Message: fmt.Sprintf("%d of %d configurations running", len(h.configs)-n, len(h.configs)),
		}
	}
	components["scheduler"] = scheduler

	return HealthResponse{
		Status:     status,
		Version:    config.GetString(config.AppVersionKey),
		Uptime:     h.now().Sub(h.started).Round(time.Second).String(),
		Components: components,
	}
}

func describe(cfg *configuration.Configuration) string {
	every := "continuously"
	if wait, ok := cfg.Wait(time.Second); ok {
		every = "every " + wait.String()
	}
	return fmt.Sprintf("%d probes in %d groups, %d handlers, %s",
		cfg.ProbeCount(), len(cfg.Groups), len(cfg.Handlers), every)
}
