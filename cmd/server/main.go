// Command server runs the HTTP API, including the cron trigger endpoints.
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

	"github.com/ignite/domainwatch/internal/api"
	"github.com/ignite/domainwatch/internal/app"
	"github.com/ignite/domainwatch/internal/config"
	"github.com/ignite/domainwatch/internal/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Redact()).With("binary", "server")
	if cfg.Cron.Secret == "" {
		log.Warn("CRON_SECRET is empty, cron endpoints will reject every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := api.Deps{
		Domains:      a.Domains,
		Revalidator:  a.Revalidator,
		Refresher:    a.Monitor,
		Reverify:     a.ReverifySweep,
		Pending:      a.PendingSweep,
		Preferences:  a.Notifications,
		SweepTimeout: cfg.Cron.SweepTimeout(),
	}
	var bucket api.BucketChecker
	if a.Archive != nil {
		deps.History = a.Archive
		bucket = a.Archive
	}
	health := api.NewHealthChecker(a.DB, a.Redis, bucket, a.Runs)
	srv := api.NewServer(cfg.Server, api.NewHandlers(deps, log), health, cfg.Cron.Secret)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
