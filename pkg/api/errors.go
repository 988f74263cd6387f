package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/planner"
	"github.com/clearcoreai/clearcore/pkg/registry"
)

// mapCoreError maps core-layer errors to HTTP error responses. The mapping
// happens once, here; core packages never know about status codes.
func mapCoreError(err error) *echo.HTTPError {
	var unreachable *registry.UnreachableError
	if errors.As(err, &unreachable) {
		return echo.NewHTTPError(http.StatusBadRequest, unreachable.Error())
	}
	var badManifest *registry.BadManifestError
	if errors.As(err, &badManifest) {
		return echo.NewHTTPError(http.StatusBadRequest, badManifest.Error())
	}
	if errors.Is(err, registry.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}

	var unsupported *planner.UnsupportedGoalError
	if errors.As(err, &unsupported) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, unsupported.Error())
	}
	if errors.Is(err, planner.ErrNoExecutableSteps) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if errors.Is(err, llm.ErrMissingAPIKey) {
		return echo.NewHTTPError(http.StatusInternalServerError, "LLM API key is not configured")
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, apiErr.Error())
	}

	var persist *registry.PersistError
	if errors.As(err, &persist) {
		return echo.NewHTTPError(http.StatusInternalServerError, persist.Error())
	}

	// Unexpected error
	slog.Error("Unexpected core error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
