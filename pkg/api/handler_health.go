package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/version"
)

// healthHandler handles GET /health.
// Returns a minimal, safe response suitable for unauthenticated access.
// External dependencies (agents, LLM service) are deliberately excluded:
// a sick downstream must not make the orchestrator report unhealthy.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ClearCoreAI orchestrator is up and running.",
		"registered_agents": s.registry.List(),
	})
}

// metricsHandler handles GET /metrics: the orchestrator's own counters.
// Per-agent metrics live under /agents/metrics.
func (s *Server) metricsHandler(c *echo.Context) error {
	activeWS := 0
	if s.connManager != nil {
		activeWS = s.connManager.ActiveConnections()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"service":               version.Full(),
		"uptime_seconds":        int(time.Since(s.startTime).Seconds()),
		"registered_agents":     len(s.registry.List()),
		"aiwaterdrops_consumed": s.water.Get(),
		"active_ws_connections": activeWS,
	})
}
