package auditor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/manifest"
	"github.com/clearcoreai/clearcore/pkg/version"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// AgentName is the name the auditor registers under.
const AgentName = "auditor"

// AgentManifest is the manifest the auditor serves and registers with.
// The audit_trace capability is marked trace-consuming so the executor
// feeds it the execution trace projection instead of the rolling context.
func AgentManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Capabilities: []manifest.Capability{{
			Name:               "audit_trace",
			Description:        "Audit a full execution trace against per-agent policies and return a quality report.",
			CustomInputHandler: "use_execution_trace",
		}},
		InputSpec:  map[string]any{"type": "object"},
		OutputSpec: map[string]any{"type": "object"},
	}
}

// Server is the auditor agent's HTTP surface.
type Server struct {
	core  *Core
	water *water.Accountant

	echo       *echo.Echo
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// NewServer creates the auditor server and registers its routes.
func NewServer(core *Core, acct *water.Accountant) *Server {
	s := &Server{
		core:      core,
		water:     acct,
		startTime: time.Now(),
		logger:    slog.Default().With("component", "auditor-server"),
	}

	e := echo.New()
	e.GET("/manifest", s.manifestHandler)
	e.GET("/health", s.healthHandler)
	e.GET("/capabilities", s.capabilitiesHandler)
	e.GET("/metrics", s.metricsHandler)
	e.POST("/run", s.runHandler)
	e.POST("/execute", s.executeHandler)

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

func (s *Server) manifestHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, AgentManifest())
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Auditor agent is up and running.",
	})
}

func (s *Server) capabilitiesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"capabilities": AgentManifest().Capabilities,
	})
}

func (s *Server) metricsHandler(c *echo.Context) error {
	var lastCheck any
	if summary, ok := s.core.LastCheck(); ok {
		lastCheck = summary
	}
	return c.JSON(http.StatusOK, map[string]any{
		"agent":                 AgentName,
		"version":               version.GitCommit,
		"uptime_seconds":        int(time.Since(s.startTime).Seconds()),
		"aiwaterdrops_consumed": s.water.Get(),
		"last_check":            lastCheck,
	})
}

// runHandler handles POST /run: audit a full execution trace.
func (s *Server) runHandler(c *echo.Context) error {
	var trace Trace
	if err := c.Bind(&trace); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid trace body")
	}
	return s.audit(c, &trace)
}

// executeHandler handles POST /execute: the generic agent dispatch
// contract. Only audit_trace is known.
func (s *Server) executeHandler(c *echo.Context) error {
	var req struct {
		Capability string `json:"capability"`
		Input      Trace  `json:"input"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Capability != "audit_trace" {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown capability: "+req.Capability)
	}
	return s.audit(c, &req.Input)
}

func (s *Server) audit(c *echo.Context, trace *Trace) error {
	result, err := s.core.Run(c.Request().Context(), trace)
	if err != nil {
		return s.mapAuditError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// mapAuditError maps auditor core errors to HTTP responses.
func (s *Server) mapAuditError(err error) *echo.HTTPError {
	var policyErr *PolicyDiscoveryError
	if errors.As(err, &policyErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, policyErr.Error())
	}
	var validErr *ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, ErrEmptyTrace) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return echo.NewHTTPError(http.StatusInternalServerError, "LLM API key for mistral not found, cannot perform audit")
	}

	s.logger.Error("Audit failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "LLM audit failed: "+err.Error())
}
