package router

import (
	"github.com/labstack/echo/v4"

	"holachat/internal/adapter/api/handler"
	"holachat/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up the broker endpoint
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.Authenticate)
}
