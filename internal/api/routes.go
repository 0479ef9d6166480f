// Package api is the thin HTTP surface over the inspect service: query
// parsing in, JSON out. All dispatch semantics live below it.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rawblock/inspect-gateway/internal/config"
	"github.com/rawblock/inspect-gateway/internal/db"
	"github.com/rawblock/inspect-gateway/internal/inspect"
	"github.com/rawblock/inspect-gateway/internal/metrics"
	"github.com/rawblock/inspect-gateway/internal/schema"
	"github.com/rawblock/inspect-gateway/internal/worker"
)

type Handler struct {
	service *inspect.Service
	manager *worker.Manager
	store   *db.Store
	schemas *schema.Provider
	log     zerolog.Logger
}

func SetupRouter(cfg *config.Config, service *inspect.Service, manager *worker.Manager,
	store *db.Store, schemas *schema.Provider, m *metrics.Metrics, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	h := &Handler{
		service: service,
		manager: manager,
		store:   store,
		schemas: schemas,
		log:     log.With().Str("component", "api").Logger(),
	}

	limiter := NewRateLimiter(cfg.RatePerMinute, cfg.RateBurst)

	inspectGroup := r.Group("/", AuthMiddleware(cfg.AuthToken, log), limiter.Middleware())
	{
		inspectGroup.GET("/", h.handleInspect)
		inspectGroup.GET("/inspect", h.handleInspect)
	}

	r.GET("/stats", h.handleStats)
	r.GET("/health", h.handleHealth)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

// corsMiddleware mirrors the deployment convention: ALLOWED_ORIGINS empty or
// "*" means open, otherwise a comma-separated allowlist.
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// handleInspect serves GET / and GET /inspect.
func (h *Handler) handleInspect(c *gin.Context) {
	req, err := inspect.ParseQuery(
		c.Query("s"),
		c.Query("a"),
		c.Query("d"),
		c.Query("m"),
		c.Query("url"),
		c.Query("refresh") == "true" || c.Query("refresh") == "1",
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Inspect(c.Request.Context(), req)
	if err != nil {
		h.writeInspectError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeInspectError(c *gin.Context, err error) {
	var badReq *inspect.BadRequestError
	var procErr *inspect.ProcessingError
	switch {
	case errors.As(err, &badReq):
		c.JSON(http.StatusBadRequest, gin.H{"error": badReq.Reason})
	case errors.Is(err, inspect.ErrQueueFull):
		c.Header("Retry-After", "5")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "queue full"})
	case errors.Is(err, inspect.ErrInspectTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.As(err, &procErr):
		h.log.Error().Err(err).Msg("processing fault")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process inspection"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// handleStats returns the aggregated fleet snapshot plus service counters.
func (h *Handler) handleStats(c *gin.Context) {
	snap, err := h.manager.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fleet":             snap,
		"cachedInspections": h.service.CachedCount(),
		"queueDepth":        h.service.QueueDepth(),
	})
}

// handleHealth reports db connectivity, bot readiness and schema freshness.
func (h *Handler) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	dbOK := h.store.Ping(ctx) == nil

	readyBots := 0
	totalBots := 0
	if snap, err := h.manager.Stats(ctx); err == nil {
		readyBots = snap.ReadyBots
		totalBots = snap.TotalBots
	}

	schemaAge := h.schemas.Age()
	status := "operational"
	code := http.StatusOK
	if !dbOK || readyBots == 0 || schemaAge < 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"dbConnected": dbOK,
		"readyBots":   readyBots,
		"totalBots":   totalBots,
		"schemaAge":   schemaAge.Round(time.Second).String(),
	})
}
