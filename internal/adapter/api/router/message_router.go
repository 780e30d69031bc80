package router

import (
	"github.com/labstack/echo/v4"

	"holachat/internal/adapter/api/handler"
	"holachat/internal/adapter/api/middleware"
)

// SetupMessageRouter sets up the messaging REST endpoints
func SetupMessageRouter(api *echo.Group, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware) {
	messages := api.Group("/messages")
	messages.Use(authMiddleware.Authenticate)

	messages.GET("/chat-users", messageHandler.ListPartners)          // ids the caller has talked to
	messages.POST("/users/by-ids", messageHandler.GetUsersByIDs)      // batch identity lookup
	messages.GET("/conversation/:id", messageHandler.GetConversation) // history with :id
	messages.POST("", messageHandler.SendMessage)                     // store and push
}
