// Package adminhttp exposes the administrative surface named in §6: pausing
// delivery, forcing an out-of-band Watcher tick, and reporting scheduler
// stats. It follows the teacher's app/admin/controller convention of one
// Controller closing over its dependencies with a bearer-token RequireAuth
// middleware, trimmed to this process's much smaller surface.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/govsentinel/sentinel/pkg/scheduler"
	"github.com/govsentinel/sentinel/pkg/utils"
	"go.uber.org/zap"
)

// SchedulerStats is the subset of scheduler.Scheduler this controller depends
// on, narrowed for testability the same way pkg/scheduler narrows its own
// Temporal-independent dispatcher.
type SchedulerStats interface {
	PauseDelivery(paused bool)
	ForceTick(ctx context.Context, chainID string) error
	Stats() scheduler.Stats
}

// Controller wires the admin HTTP surface to the Scheduler.
type Controller struct {
	scheduler  SchedulerStats
	adminToken string
	logger     *zap.Logger
}

// NewController builds a Controller reading its bearer token from ADMIN_TOKEN,
// matching the teacher's controller.NewController convention.
func NewController(scheduler SchedulerStats, logger *zap.Logger) *Controller {
	return &Controller{
		scheduler:  scheduler,
		adminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		logger:     logger,
	}
}

// ValidateToken checks the Authorization header against AdminToken.
func (c *Controller) ValidateToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ") == c.adminToken
	}
	return false
}

// RequireAuth rejects any request lacking a valid bearer token.
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ValidateToken(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
}

// NewRouter builds the admin API's routes.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)
	r.Handle("/api/stats", c.RequireAuth(http.HandlerFunc(c.HandleStats))).Methods(http.MethodGet)
	r.Handle("/api/pause", c.RequireAuth(http.HandlerFunc(c.HandlePause))).Methods(http.MethodPost)
	r.Handle("/api/chains/{id}/tick", c.RequireAuth(http.HandlerFunc(c.HandleForceTick))).Methods(http.MethodPost)

	return r
}

// HandleHealth is unauthenticated liveness, mirroring the teacher's
// /api/health convention.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleStats reports the Scheduler's current load and pause state (§6).
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(c.scheduler.Stats())
}

// pauseRequest is the body HandlePause decodes.
type pauseRequest struct {
	Paused bool `json:"paused"`
}

// HandlePause toggles the Delivery Gate's pause state (§6).
func (c *Controller) HandlePause(w http.ResponseWriter, r *http.Request) {
	var body pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	c.scheduler.PauseDelivery(body.Paused)
	c.logger.Info("adminhttp: delivery pause toggled", zap.Bool("paused", body.Paused))
	_ = json.NewEncoder(w).Encode(map[string]bool{"paused": body.Paused})
}

// HandleForceTick triggers an out-of-band Watcher tick for the named chain (§6).
func (c *Controller) HandleForceTick(w http.ResponseWriter, r *http.Request) {
	chainID := mux.Vars(r)["id"]
	if chainID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing chain id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := c.scheduler.ForceTick(ctx, chainID); err != nil {
		c.logger.Error("adminhttp: force tick failed", zap.String("chain", chainID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	c.logger.Info("adminhttp: force tick triggered", zap.String("chain", chainID))
	_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1"})
}
