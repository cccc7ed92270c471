package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vshell/internal/server/config"
)

// SetupRouter builds the echo instance serving the session API.
// The returned limiter must be stopped on shutdown.
func SetupRouter(handler *Handler, cfg *config.Config) (*echo.Echo, *RateLimiter) {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, TokenHeader},
	}))
	e.Use(RequestLogger())

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// creation is charged per client, commands per session
	sessions := e.Group("/api/sessions")
	sessions.POST("", handler.HandleCreate, limiter.Middleware(ByIP))
	sessions.DELETE("/:id", handler.HandleClose)

	sessions.POST("/:id/exec", handler.HandleExec, limiter.Middleware(BySession))
	sessions.GET("/:id/ws", handler.HandleTerminal)

	sessions.GET("/:id/events", handler.HandleEvents)
	sessions.GET("/:id/log", handler.HandleLog)
	sessions.GET("/:id/archive", handler.HandleArchive)

	return e, limiter
}
