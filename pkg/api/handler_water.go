package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/registry"
)

// waterTotalHandler handles GET /water/total: the orchestrator's own
// counter plus every agent's reported consumption. Agents that fail to
// answer contribute an error entry to the breakdown and nothing to the
// total.
func (s *Server) waterTotalHandler(c *echo.Context) error {
	breakdown := map[string]any{
		"orchestrator": s.water.Get(),
	}
	total := s.water.Get()

	metrics := s.registry.AggregateMetrics(c.Request().Context())
	for agent, m := range metrics {
		if drops, ok := registry.AgentWaterdrops(m); ok {
			breakdown[agent] = drops
			total += drops
			continue
		}
		breakdown[agent] = m
	}

	return c.JSON(http.StatusOK, map[string]any{
		"breakdown":        breakdown,
		"total_waterdrops": total,
	})
}
