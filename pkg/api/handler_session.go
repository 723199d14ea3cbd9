package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/maestro-ai/maestro/pkg/models"
)

type createSessionRequest struct {
	Topic string               `json:"topic"`
	Novel *models.NovelProfile `json:"novel,omitempty"`
}

type commandRequest struct {
	Command string         `json:"command"`
	Payload map[string]any `json:"payload,omitempty"`
}

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	snap, err := s.orch.CreateSession(c.Request().Context(), owner(c), req.Topic, req.Novel)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, snap)
}

// listSessionsHandler handles GET /sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	summaries, err := s.orch.ListSessions(c.Request().Context(), owner(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": summaries})
}

// getSessionHandler handles GET /sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	snap, err := s.orch.Snapshot(c.Request().Context(), owner(c), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// deleteSessionHandler handles DELETE /sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	result, err := s.orch.Execute(c.Request().Context(), owner(c), sessionID,
		models.Command{Type: models.CommandDeleteSession})
	if err != nil {
		if result != nil {
			return c.JSON(mapServiceError(err).Code, result)
		}
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// commandHandler handles POST /sessions/:id/command, the HTTP side of the
// shared command dispatcher.
func (s *Server) commandHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cmd, err := models.ParseCommand(req.Command, req.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := s.orch.Execute(c.Request().Context(), owner(c), sessionID, cmd)
	if err != nil {
		// Refused commands still carry ok=false and the current snapshot so
		// the client can render state alongside the reason.
		if result != nil {
			return c.JSON(mapServiceError(err).Code, result)
		}
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// eventsHandler handles GET /sessions/:id/events?since=<RFC3339Nano>, the
// polling endpoint. Events strictly later than since are returned; the
// returned last_progress_event_ts is the client's next since value.
func (s *Server) eventsHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	var since time.Time
	if v := c.QueryParam("since"); v != "" {
		parsed, err := models.ParseUTC(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an RFC3339 UTC timestamp")
		}
		since = parsed
	}
	page, err := s.orch.Events(c.Request().Context(), owner(c), sessionID, since)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, page)
}
