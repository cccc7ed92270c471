package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"vshell/internal/eventlog"
	"vshell/internal/server/database"
	"vshell/internal/server/service"
	"vshell/internal/server/storage"

	"github.com/labstack/echo/v4"
)

// TokenHeader carries the session token on every session request.
const TokenHeader = "X-Session-Token"

// StatsSource reports aggregate session statistics.
type StatsSource interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Handler contains the HTTP handlers for the vshell API.
type Handler struct {
	svc   *service.SessionService
	store storage.Store
	db    *database.DB
	stats StatsSource
}

// NewHandler creates a new handler. db and stats are nil when the server
// runs without a database.
func NewHandler(svc *service.SessionService, store storage.Store, db *database.DB, stats StatsSource) *Handler {
	return &Handler{svc: svc, store: store, db: db, stats: stats}
}

type createRequest struct {
	Username string `json:"username"`
}

type execRequest struct {
	Line string `json:"line"`
}

// HandleCreate handles POST /api/sessions.
// Opens a session with its own tree and returns the session token.
func (h *Handler) HandleCreate(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.svc.Create(c.Request().Context(), req.Username)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleExec handles POST /api/sessions/:id/exec.
// Runs one command line and returns its outcome with the new prompt.
func (h *Handler) HandleExec(c echo.Context) error {
	var req execRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result, err := h.svc.Exec(c.Request().Context(), c.Param("id"), sessionToken(c), req.Line)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// HandleEvents handles GET /api/sessions/:id/events.
// Ended sessions are served until their log is cleaned up.
func (h *Handler) HandleEvents(c echo.Context) error {
	events, err := h.svc.Events(c.Request().Context(), c.Param("id"), sessionToken(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}

// HandleLog handles GET /api/sessions/:id/log.
// Serves the XML event log of the session as an attachment.
func (h *Handler) HandleLog(c echo.Context) error {
	id := c.Param("id")
	events, err := h.svc.LogEvents(c.Request().Context(), id, sessionToken(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationXMLCharsetUTF8)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", id+".xml"))
	res.WriteHeader(http.StatusOK)
	return eventlog.WriteXML(res, events)
}

// HandleArchive handles GET /api/sessions/:id/archive.
// Streams the current tree of the session as a zip attachment.
func (h *Handler) HandleArchive(c echo.Context) error {
	id := c.Param("id")
	var buf bytes.Buffer
	if _, err := h.svc.Archive(c.Request().Context(), id, sessionToken(c), &buf); err != nil {
		return mapServiceError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", id+".zip"))
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

// HandleClose handles DELETE /api/sessions/:id.
func (h *Handler) HandleClose(c echo.Context) error {
	if err := h.svc.Close(c.Request().Context(), c.Param("id"), sessionToken(c)); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "session closed",
	})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "disabled"

	if h.db != nil {
		dbStatus = "connected"
		if err := h.db.HealthCheck(c.Request().Context()); err != nil {
			status = "degraded"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":        status,
		"database":      dbStatus,
		"open_sessions": h.svc.Count(),
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate server statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	logs, err := h.store.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}
	var logBytes int64
	for _, l := range logs {
		logBytes += l.Size
	}

	resp := echo.Map{
		"open_sessions":   h.svc.Count(),
		"tree_bytes":      h.svc.TreeBytes(),
		"stored_logs":     len(logs),
		"log_bytes":       logBytes,
		"log_bytes_human": humanizeBytes(logBytes),
	}

	if h.stats != nil {
		stats, err := h.stats.GetStats(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "failed to retrieve stats",
			})
		}
		resp["total_sessions"] = stats.TotalSessions
		resp["total_events"] = stats.TotalEvents
		resp["failed_events"] = stats.FailedEvents
	}

	return c.JSON(http.StatusOK, resp)
}

// sessionToken reads the token from the header, falling back to the
// token query parameter for clients that cannot set headers.
func sessionToken(c echo.Context) string {
	if token := c.Request().Header.Get(TokenHeader); token != "" {
		return token
	}
	return c.QueryParam("token")
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, service.ErrLogNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session log not found"})
	case errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid session token"})
	case errors.Is(err, service.ErrInvalidUsername):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTooManySessions):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "too many open sessions, try again later"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
