package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"holachat/internal/adapter/api/handler"
	"holachat/internal/adapter/api/middleware"
	"holachat/internal/infrastructure/ratelimit"
)

// Setup mounts every route. metrics may be nil.
func Setup(e *echo.Echo, handlers *handler.Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter, metrics http.Handler) {
	api := e.Group("/api")
	SetupAuthRouter(api, handlers.Auth, limiter)
	SetupMessageRouter(api, handlers.Message, authMiddleware)
	SetupWebSocketRouter(e, handlers.WebSocket, authMiddleware)
	SetupHealthRouter(e, handlers.Health, metrics)
}
