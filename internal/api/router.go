package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/dbpool"
	"github.com/veritail/veritail/internal/feed"
	"github.com/veritail/veritail/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *feed.Hub
	Versions    VersionRepository
	Conflicts   ConflictResolver
	Ledger      LedgerRepository
	Verifier    Verifier
	Events      EventRecorder
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 4 << 20 // 4 MB; entity payloads are structured records, not blobs
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200     // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(middleware.Actor())
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Actor-ID"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Verifier, log, deps.Version)
	entities := NewEntityHandler(deps.Versions, deps.Conflicts, deps.Events, log)
	changes := NewChangesHandler(deps.Versions, log)
	ledger := NewLedgerHandler(deps.Ledger, log)
	verify := NewVerifyHandler(deps.Verifier, deps.Events, log)

	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	api.GET("/entities/:type/:id/version", entities.GetVersion)
	api.POST("/entities/:type/:id", entities.Commit)
	api.DELETE("/entities/:type/:id", entities.Delete)
	api.POST("/entities/:type/:id/check", entities.Check)
	api.POST("/entities/:type/:id/merge", entities.Merge)

	api.GET("/changes", changes.List)

	api.GET("/ledger", ledger.Query)
	api.GET("/ledger/latest", ledger.Latest)

	api.POST("/verify", verify.Run)
	api.GET("/verify/status", verify.Status)

	api.GET("/feed", feedHandler(ctx, log, deps.Hub, deps.CORSOrigins))
}

// NewRouter builds the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
