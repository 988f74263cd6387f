package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/notify"
	"github.com/clearcoreai/clearcore/pkg/registry"
)

// planHandler handles POST /plan: generate and validate a plan without
// executing it.
func (s *Server) planHandler(c *echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Goal == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "goal is required")
	}

	cat := registry.BuildCatalog(s.registry.Snapshot())
	result, err := s.planner.Plan(c.Request().Context(), req.Goal, cat)
	if err != nil {
		return mapCoreError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"goal":   req.Goal,
		"plan":   result.PlanText,
		"result": result.Steps,
	})
}

// executePlanHandler handles POST /execute_plan: run an already-generated
// plan against the current registry snapshot.
func (s *Server) executePlanHandler(c *echo.Context) error {
	var req ExecutePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Plan == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan is required")
	}

	runID := uuid.New().String()
	trace := s.executor.Execute(c.Request().Context(), runID, req.Goal, req.Plan, s.registry.Snapshot())
	return c.JSON(http.StatusOK, trace)
}

// runGoalHandler handles POST /run_goal: plan and execute in one request.
// The registry snapshot taken at plan time is the one the executor runs
// against, so mid-run re-registrations never change the plan's view.
func (s *Server) runGoalHandler(c *echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Goal == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "goal is required")
	}

	view := s.registry.Snapshot()
	cat := registry.BuildCatalog(view)

	planResult, err := s.planner.Plan(c.Request().Context(), req.Goal, cat)
	if err != nil {
		return mapCoreError(err)
	}

	runID := uuid.New().String()
	trace := s.executor.Execute(c.Request().Context(), runID, req.Goal, planResult.PlanText, view)

	s.notifyRunCompleted(req.Goal, trace)

	return c.JSON(http.StatusOK, map[string]any{
		"goal":   req.Goal,
		"plan":   planResult.PlanText,
		"result": trace,
	})
}

// notifyRunCompleted sends the Slack notification for a finished run,
// surfacing the audit verdict when the trace ends with one.
func (s *Server) notifyRunCompleted(goal string, trace *models.ExecutionTrace) {
	if s.notifier == nil {
		return
	}

	input := notify.RunCompletedInput{
		Goal:           goal,
		Steps:          len(trace.Steps),
		WaterdropsUsed: trace.TotalWaterdropsUsed,
	}
	if len(trace.Steps) > 0 {
		last := trace.Steps[len(trace.Steps)-1]
		if verdict, ok := last.Output.(map[string]any); ok && strings.Contains(last.Capability, "audit") {
			if status, ok := verdict["status"].(string); ok {
				input.AuditStatus = status
			}
			if summary, ok := verdict["summary"].(string); ok {
				input.AuditSummary = summary
			}
		}
	}

	go s.notifier.NotifyRunCompleted(context.Background(), input)
}
