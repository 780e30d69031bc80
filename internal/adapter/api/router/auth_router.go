package router

import (
	"github.com/labstack/echo/v4"

	"holachat/internal/adapter/api/handler"
	"holachat/internal/adapter/api/middleware"
	"holachat/internal/infrastructure/ratelimit"
)

func SetupAuthRouter(api *echo.Group, authHandler *handler.AuthHandler, limiter *ratelimit.RateLimiter) {
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login, middleware.RateLimit(limiter, ratelimit.ActionLogin))
}
