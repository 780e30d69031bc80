package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"holachat/internal/adapter/api/handler"
	apimiddleware "holachat/internal/adapter/api/middleware"
	"holachat/internal/adapter/api/router"
	"holachat/internal/adapter/repository"
	"holachat/internal/infrastructure/auth"
	"holachat/internal/infrastructure/metrics"
	"holachat/internal/infrastructure/ratelimit"
	"holachat/internal/infrastructure/websocket"
	"holachat/internal/usecase"
	"holachat/pkg/response"
)

type ServerConfig struct {
	DB                *gorm.DB
	JWTSecret         string
	JWTExpiry         time.Duration
	SendRatePerMinute int
	LoginPerMinute    int
	// Registry, when set, receives the broker collectors and is served on
	// /metrics.
	Registry *prometheus.Registry
	// RequestLog enables echo's access log.
	RequestLog bool
}

// Server is the development backend: REST messaging API plus the websocket
// broker.
type Server struct {
	Echo    *echo.Echo
	Manager *websocket.Manager
	Auth    *usecase.AuthUseCase
	Relay   *usecase.RelayUseCase
}

// NewServer wires the backend. Background work stops when ctx is done.
func NewServer(ctx context.Context, cfg ServerConfig) *Server {
	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
	}

	wsManager := websocket.NewManager(metrics.NewBroker(reg))
	wsManager.Start(ctx)

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(cfg.SendRatePerMinute),
		ratelimit.ActionLogin:       ratelimit.PerMinute(cfg.LoginPerMinute),
	}, ratelimit.Policy{})
	limiter.StartCleanupRoutine(ctx, 10*time.Minute)

	accountRepo := repository.NewGormAccountRepository(cfg.DB)
	messageRepo := repository.NewGormMessageRepository(cfg.DB)

	authUseCase := usecase.NewAuthUseCase(accountRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry))
	relayUseCase := usecase.NewRelayUseCase(messageRepo, accountRepo, wsManager, limiter)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = response.ErrorHandler
	e.Validator = NewValidator()

	if cfg.RequestLog {
		e.Use(echomiddleware.Logger())
	}
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	var metricsHandler http.Handler
	if cfg.Registry != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	}

	handlers := handler.Setup(authUseCase, relayUseCase, wsManager)
	router.Setup(e, handlers, apimiddleware.NewAuthMiddleware(authUseCase), limiter, metricsHandler)

	return &Server{
		Echo:    e,
		Manager: wsManager,
		Auth:    authUseCase,
		Relay:   relayUseCase,
	}
}
