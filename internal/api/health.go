package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/dbpool"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	pool      *dbpool.Pool
	verifier  Verifier
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler with the given dependencies.
func NewHealthHandler(pool *dbpool.Pool, verifier Verifier, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		verifier:  verifier,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	LedgerValid   *bool   `json:"ledger_valid,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.pool.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	// Surface the last verification outcome when one exists.
	if last := h.verifier.LastStatus(); last != nil {
		valid := last.Valid
		resp.LedgerValid = &valid
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready — fails when the database is
// unreachable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{"database": "ok"}
	status := "ready"
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Warn("readiness check failed")
		checks["database"] = "unreachable"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{"status": status, "checks": checks})
}
