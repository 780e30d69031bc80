package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"holachat/internal/adapter/repository"
	"holachat/internal/domain/entity"
	domainrepo "holachat/internal/domain/repository"
	"holachat/internal/infrastructure/httpclient"
	"holachat/internal/infrastructure/metrics"
	"holachat/internal/infrastructure/ratelimit"
	"holachat/internal/infrastructure/session"
	ws "holachat/internal/infrastructure/websocket"
	"holachat/internal/usecase"
	"holachat/pkg/logger"
)

// app is the client-side object graph shared by the commands.
type app struct {
	store    *session.FileStore
	repo     domainrepo.ConversationRepository
	registry *prometheus.Registry
	metrics  *metrics.Client
	chat     *usecase.ChatUseCase
	channel  *ws.Channel
	sessions *usecase.SessionUseCase
}

func newApp() *app {
	a := &app{
		store:    session.NewFileStore(cfg.SessionFile),
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.NewClient(a.registry)

	client := httpclient.New(cfg.APIURL, a.store, cfg.RequestTimeout)
	a.repo = repository.NewRestConversationRepository(client)

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(cfg.SendRatePerMinute),
	}, ratelimit.Policy{})
	a.chat = usecase.NewChatUseCase(a.store, a.repo, limiter, a.metrics, cfg.RequestTimeout)

	a.channel = ws.NewChannel(ws.ChannelConfig{
		URL:                  cfg.BrokerURL,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		DegradedAfter:        cfg.DegradedAfter,
	}, a.store, a.store, func(msg entity.Message) {
		a.chat.IngestPush(msg)
	}, ws.WithStatusHandler(a.chat.SetConnectionStatus), ws.WithClientMetrics(a.metrics))

	a.sessions = usecase.NewSessionUseCase(a.store, a.channel, a.chat)
	return a
}

// serveMetrics exposes the registry on cfg.MetricsAddr until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		logger.Info("Serving metrics on %s", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
