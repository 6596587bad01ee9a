package ui

import (
	"encoding/json"
	"net/http"
	"time"

	"cmportal/app"
	"cmportal/internal"
	"cmportal/internal/container"
	"cmportal/internal/dataset"
	"cmportal/internal/reference"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Admin is the operator surface: health, cache state, upload sweeps and pprof.
// It listens separately from the dashboard.
type Admin struct {
	router    *chi.Mux
	reference *reference.Cache
	results   *app.ResultCache
	uploads   *dataset.LocalFileStorage
	logger    *internal.Logger
	started   time.Time
}

// NewAdmin creates the admin router over the container's caches
func NewAdmin(c *container.Container) *Admin {
	logger := c.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	a := &Admin{
		router:    chi.NewRouter(),
		reference: c.Reference,
		results:   c.Results,
		uploads:   c.Uploads,
		logger:    logger.With("admin"),
		started:   time.Now(),
	}

	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)

	a.router.Get("/healthz", a.handleHealth)
	a.router.Get("/cache", a.handleCacheStats)
	a.router.Post("/cache/clear", a.handleCacheClear)
	a.router.Post("/uploads/sweep", a.handleSweep)
	a.router.Mount("/debug", middleware.Profiler())
	return a
}

// ServeHTTP implements http.Handler
func (a *Admin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth is ok once the reference tables are loaded
func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := a.reference.Stats()
	status, code := "ok", http.StatusOK
	if !stats.Loaded {
		status, code = "loading", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"source":     stats.Source,
		"uptime":     time.Since(a.started).Round(time.Second).String(),
		"last_error": stats.LastError,
	})
}

func (a *Admin) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reference": a.reference.Stats(),
		"results":   a.results.Stats(),
	})
}

// handleCacheClear drops the reference tables (and with them cached results);
// the next request reloads from the source
func (a *Admin) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	a.reference.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "cleared",
		"reference": a.reference.Stats(),
	})
}

func (a *Admin) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := a.uploads.Sweep(r.Context())
	if err != nil {
		a.logger.Error("sweep failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
