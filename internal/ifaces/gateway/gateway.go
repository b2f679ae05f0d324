// Package gateway exposes the Runtime over HTTP: one route per CLI
// command (spec.md §6.4), an ops sub-router for health/metrics, and a
// websocket stream for live event push — the HTTP surface the daemon
// socket protocol (§6.5) does not cover.
package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/noesis-run/noesis/internal/ifaces"
	"github.com/noesis-run/noesis/internal/metrics"
	"github.com/noesis-run/noesis/internal/output"
)

// Gateway wires a gin engine carrying the command surface plus a chi
// ops sub-router mounted under /ops, matching the teacher's pattern of
// layering a lightweight router for cross-cutting endpoints alongside
// the main application router.
type Gateway struct {
	rt       *ifaces.Runtime
	registry *metrics.Registry
	limiter  *PartnerLimiter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(rt *ifaces.Runtime, registry *metrics.Registry, log zerolog.Logger) *Gateway {
	return &Gateway{
		rt:       rt,
		registry: registry,
		limiter:  NewPartnerLimiter(DefaultRateConfig()),
		log:      log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Handler builds the full gin engine with the ops sub-router mounted.
func (g *Gateway) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), g.requestLogger())

	engine.GET("/status", g.handleStatus)
	engine.GET("/vitals", g.handleHostVitals)
	engine.POST("/verify", g.handleVerify)
	engine.GET("/verify_readonly", g.handleVerifyReadonly)
	engine.POST("/session/start", g.rateLimited(g.handleSessionStart))
	engine.POST("/session/end", g.handleSessionEnd)
	engine.POST("/recharge", g.rateLimited(g.handleRecharge))
	engine.POST("/op/:id", g.rateLimited(g.handleOpExec))
	engine.POST("/agent/cycle", g.handleAgentForceCycle)
	engine.POST("/agent/wake", g.handleAgentWake)
	engine.POST("/agent/sleep", g.handleAgentSleep)
	engine.POST("/snapshot", g.handleSnapshotCreate)
	engine.GET("/snapshot", g.handleSnapshotList)
	engine.POST("/snapshot/:id/restore", g.handleSnapshotRestore)
	engine.POST("/meta/define", g.handleMetaDefine)
	engine.POST("/meta/compose", g.handleMetaCompose)
	engine.POST("/meta/specialize", g.handleMetaSpecialize)
	engine.GET("/events/stream", gin.WrapH(http.HandlerFunc(g.handleEventsStream)))

	engine.Any("/ops/*rest", gin.WrapH(g.opsRouter()))

	return engine
}

// opsRouter is a chi sub-router for health and metrics — cheap,
// dependency-free endpoints that don't need gin's full middleware stack.
func (g *Gateway) opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/ops/healthz", func(w http.ResponseWriter, r *http.Request) {
		state := g.rt.Status()
		w.Header().Set("Content-Type", "application/json")
		if state.Integrity.Status == "terminal" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(`{"status":"` + string(state.Integrity.Status) + `"}`))
	})
	r.Mount("/ops/metrics", g.registry.Handler())
	return r
}

func (g *Gateway) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		g.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// respond renders value as the response body in the format requested by
// the ?format= query param (json by default, yaml on request) — the
// gateway's half of the json/yaml rendering internal/output provides,
// matching noesisctl's --format flag on the other side of the wire.
func respond(c *gin.Context, status int, value any) {
	format, ok := output.ParseFormat(c.Query("format"))
	if !ok || format == output.FormatJSON {
		c.JSON(status, value)
		return
	}
	rendered, err := output.Render(value, format)
	if err != nil {
		c.JSON(status, value)
		return
	}
	c.Data(status, "application/yaml", rendered)
}

// rateLimited applies the per-partner throttle to mutating routes —
// state-changing operations are the ones worth rate limiting, read
// endpoints like /status are left unthrottled.
func (g *Gateway) rateLimited(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		partner := c.GetHeader("X-Noesis-Partner")
		if partner == "" {
			partner = c.ClientIP()
		}
		if !g.limiter.Allow(partner) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		next(c)
	}
}
