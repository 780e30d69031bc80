package handler

import (
	ws "holachat/internal/infrastructure/websocket"
	"holachat/internal/usecase"
)

// Handlers bundles every HTTP handler of the dev backend.
type Handlers struct {
	Auth      *AuthHandler
	Message   *MessageHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
}

func Setup(authUseCase *usecase.AuthUseCase, relayUseCase *usecase.RelayUseCase, wsManager *ws.Manager) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(authUseCase),
		Message:   NewMessageHandler(relayUseCase),
		WebSocket: NewWebSocketHandler(wsManager),
		Health:    NewHealthHandler(wsManager),
	}
}
