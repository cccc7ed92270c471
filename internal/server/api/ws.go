package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"vshell/internal/server/service"

	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	*ws.Conn
	mu sync.Mutex
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

// HandleTerminal handles GET /api/sessions/:id/ws.
// Each text frame is one command line; each reply is a service.ExecResult.
// The token is checked once, before upgrading, so the client gets a plain
// HTTP error. The connection is closed once the session exits.
func (h *Handler) HandleTerminal(c echo.Context) error {
	id := c.Param("id")
	term, err := h.svc.Attach(id, sessionToken(c))
	if err != nil {
		return mapServiceError(c, err)
	}

	raw, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return nil
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	if err := conn.WriteJSON(service.ExecResult{Prompt: term.Prompt()}); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				slog.Debug("websocket read ended", "session_id", id, "error", err)
			}
			return nil
		}
		if msgType != ws.TextMessage {
			continue
		}

		result, err := term.Exec(ctx, string(data))
		if err != nil {
			msg := "internal server error"
			if errors.Is(err, service.ErrNotFound) {
				msg = "session not found"
			}
			conn.WriteJSON(echo.Map{"error": msg})
			return nil
		}

		if err := conn.WriteJSON(result); err != nil {
			slog.Warn("websocket write failed", "session_id", id, "error", err)
			return nil
		}
		if result.Exit {
			conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "exit"))
			return nil
		}
	}
}
