package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/registry"
)

// registerAgentHandler handles POST /register_agent.
func (s *Server) registerAgentHandler(c *echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.BaseURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and base_url are required")
	}

	if err := s.registry.Register(c.Request().Context(), req.Name, req.BaseURL); err != nil {
		return mapCoreError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Agent '" + req.Name + "' registered successfully.",
	})
}

// listAgentsHandler handles GET /agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	view := s.registry.Snapshot()

	agents := make(map[string]any, view.Len())
	for _, name := range view.Names() {
		rec, _ := view.Get(name)
		agents[name] = map[string]any{
			"base_url":     rec.BaseURL,
			"capabilities": rec.Manifest.CapabilityNames(),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"agents": agents})
}

// agentManifestHandler handles GET /agent_manifest/:name.
func (s *Server) agentManifestHandler(c *echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent name is required")
	}

	m, err := s.registry.GetManifest(name)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// agentConnectionsHandler handles GET /agents/connections.
func (s *Server) agentConnectionsHandler(c *echo.Context) error {
	conns := s.registry.DetectConnections()
	if conns == nil {
		conns = []registry.Connection{}
	}
	return c.JSON(http.StatusOK, map[string]any{"connections": conns})
}

// agentMetricsHandler handles GET /agents/metrics.
func (s *Server) agentMetricsHandler(c *echo.Context) error {
	metrics := s.registry.AggregateMetrics(c.Request().Context())
	return c.JSON(http.StatusOK, metrics)
}

// rawManifestsHandler handles GET /agents/raw.
func (s *Server) rawManifestsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.AllManifests())
}
