// Package api is the orchestrator's HTTP surface. Handlers are thin
// adapters: they bind the request, call one core operation, and map core
// errors to HTTP status codes. No business logic lives here.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/events"
	"github.com/clearcoreai/clearcore/pkg/executor"
	"github.com/clearcoreai/clearcore/pkg/notify"
	"github.com/clearcoreai/clearcore/pkg/planner"
	"github.com/clearcoreai/clearcore/pkg/registry"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// Server represents the orchestrator API server.
type Server struct {
	registry    *registry.Registry
	planner     *planner.Planner
	executor    *executor.Executor
	water       *water.Accountant
	connManager *events.ConnectionManager
	notifier    *notify.Service

	echo       *echo.Echo
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates the orchestrator API server and registers its routes.
// notifier may be nil; connManager may be nil to disable /ws.
func NewServer(
	reg *registry.Registry,
	pl *planner.Planner,
	ex *executor.Executor,
	acct *water.Accountant,
	connManager *events.ConnectionManager,
	notifier *notify.Service,
) *Server {
	s := &Server{
		registry:    reg,
		planner:     pl,
		executor:    ex,
		water:       acct,
		connManager: connManager,
		notifier:    notifier,
		startTime:   time.Now(),
	}

	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", s.metricsHandler)

	e.POST("/register_agent", s.registerAgentHandler)
	e.GET("/agents", s.listAgentsHandler)
	e.GET("/agent_manifest/:name", s.agentManifestHandler)
	e.GET("/agents/connections", s.agentConnectionsHandler)
	e.GET("/agents/metrics", s.agentMetricsHandler)
	e.GET("/agents/raw", s.rawManifestsHandler)

	e.POST("/plan", s.planHandler)
	e.POST("/execute_plan", s.executePlanHandler)
	e.POST("/run_goal", s.runGoalHandler)

	e.GET("/water/total", s.waterTotalHandler)
	e.GET("/ws", s.wsHandler)

	s.echo = e
	return s
}

// Start runs the HTTP server on addr. Blocks until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}
