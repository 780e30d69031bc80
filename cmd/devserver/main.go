package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"holachat/internal/adapter/api"
	"holachat/internal/adapter/repository"
	"holachat/internal/usecase"
	"holachat/pkg/config"
	"holachat/pkg/logger"
)

var (
	seedAccounts []string
	loginPerMin  int
)

var rootCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the local messaging backend",
	Long: `Run a self-contained messaging backend for local development: the REST
API under /api, the websocket broker on /ws, /health and /metrics.

Accounts are seeded with --seed id:name:password (repeatable).`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringArrayVar(&seedAccounts, "seed", nil, "account to create on startup as id:name:password")
	rootCmd.Flags().IntVar(&loginPerMin, "login-rate", 20, "login attempts per minute per address (0 disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Configure(cfg.Environment)
	defer logger.Sync()

	seeds := make([]usecase.RegisterInput, 0, len(seedAccounts))
	for _, s := range seedAccounts {
		input, err := usecase.ParseSeed(s)
		if err != nil {
			return err
		}
		seeds = append(seeds, input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := api.NewServer(ctx, api.ServerConfig{
		DB:                db,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiry:         time.Duration(cfg.JWTExpiry) * time.Second,
		SendRatePerMinute: cfg.SendRatePerMinute,
		LoginPerMinute:    loginPerMin,
		Registry:          registry,
		RequestLog:        cfg.Environment != "production",
	})

	if err := server.Auth.Seed(ctx, seeds); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		errCh <- server.Echo.Start(":" + cfg.ServerPort)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Echo.Shutdown(shutdownCtx)
}
