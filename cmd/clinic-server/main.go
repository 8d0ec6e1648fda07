package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/dental-clinic-records/internal/api"
	"github.com/hackgods/dental-clinic-records/internal/app"
	"github.com/hackgods/dental-clinic-records/internal/config"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("clinic-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("blob_driver", cfg.BlobDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(rootCtx, 15*time.Second)
	state, err := app.Open(openCtx, cfg, logger)
	cancelOpen()
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer func() {
		if err := state.Close(); err != nil {
			logger.Error("error closing storage", slog.Any("err", err))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Store:          state.Store,
		Gate:           state.Gate,
		Files:          state.Files,
		Storage:        state.KV,
		Metrics:        state.Metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", slog.Any("err", err))
		}
	}

	logger.Info("shutting down clinic-server", slog.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("err", err))
	}
	if state.Store.PersistenceDegraded() {
		logger.Warn("exiting with unpersisted changes")
	}
}
