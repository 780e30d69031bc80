package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "holachat/internal/infrastructure/websocket"
)

type HealthHandler struct {
	wsManager *ws.Manager
}

func NewHealthHandler(wsManager *ws.Manager) *HealthHandler {
	return &HealthHandler{
		wsManager: wsManager,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":            "Server is running",
		"time":              time.Now().Format(time.RFC3339),
		"websocket_clients": h.wsManager.ClientCount(),
	})
}
