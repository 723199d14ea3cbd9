package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/auth"
	"github.com/maestro-ai/maestro/pkg/orchestrator"
	"github.com/maestro-ai/maestro/pkg/runner"
	"github.com/maestro-ai/maestro/pkg/store"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *store.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	}
	if errors.Is(err, runner.ErrAlreadyRunning) {
		return echo.NewHTTPError(http.StatusConflict, "session is already running")
	}
	if errors.Is(err, orchestrator.ErrPlanNotConfirmed) {
		return echo.NewHTTPError(http.StatusConflict, "plan is not confirmed")
	}
	if errors.Is(err, agent.ErrTimeout) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "agent call timed out")
	}
	if errors.Is(err, agent.ErrProviderUnavailable) {
		return echo.NewHTTPError(http.StatusBadGateway, "llm provider unavailable")
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if errors.Is(err, auth.ErrNotVerified) {
		return echo.NewHTTPError(http.StatusForbidden, "email not verified")
	}
	if errors.Is(err, auth.ErrCodeExpired) {
		return echo.NewHTTPError(http.StatusGone, "verification code expired")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
