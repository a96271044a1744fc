// Package main is the entry point for the qcompress training service. It
// exposes the quantum-autoencoder training engine over HTTP: asynchronous
// optimization runs, synchronous landscape scans, persisted run history and
// an SSE event stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/qcompress/internal/backend"
	"github.com/aristath/qcompress/internal/config"
	"github.com/aristath/qcompress/internal/events"
	"github.com/aristath/qcompress/internal/server"
	"github.com/aristath/qcompress/internal/storage"
	"github.com/aristath/qcompress/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Str("backend", cfg.BackendKind).
		Int("shots", cfg.Shots).
		Msg("Starting qcompress")

	db, err := storage.New(storage.Config{Path: cfg.DatabasePath()})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer db.Close()

	runRepo, err := storage.NewRunRepository(db.Conn())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run repository")
	}

	var exec backend.Backend
	switch cfg.BackendKind {
	case "remote":
		exec = backend.NewRemote(cfg.BackendURL, log)
	default:
		seed := cfg.SimSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		exec = backend.NewSimulator(seed, log)
	}

	eventBus := events.NewBus(log)

	srv := server.New(server.Config{
		Log:      log,
		AppCfg:   cfg,
		Backend:  exec,
		RunRepo:  runRepo,
		EventBus: eventBus,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Stopped")
}
