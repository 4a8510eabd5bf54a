package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmeshcher/shawty/internal/config"
	"github.com/mmeshcher/shawty/internal/handler"
	"github.com/mmeshcher/shawty/internal/logger"
	"github.com/mmeshcher/shawty/internal/repository"
	"github.com/mmeshcher/shawty/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	sugar := zl.Sugar()

	sugar.Infow(
		"Starting URL shortener service",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"storage", cfg.StoreOptions().Backend(),
		"slug_length", cfg.SlugLength,
		"link_ttl", cfg.LinkTTL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.StoreOptions(), zl)
	if err != nil {
		sugar.Fatalw("Failed to open storage", "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			sugar.Errorw("Failed to close storage", "error", err)
		}
	}()

	shortenerService, err := service.NewShortenerService(store, service.Options{
		BaseURL:      cfg.BaseURL,
		SlugLength:   cfg.SlugLength,
		LinkTTL:      cfg.LinkTTL,
		StoreTimeout: cfg.StoreTimeout,
	}, zl)
	if err != nil {
		sugar.Fatalw("Failed to create service", "error", err)
	}

	h := handler.NewHandler(shortenerService, zl)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		sugar.Infow("Server starting", "address", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server failed", "error", err)
		}
	case <-ctx.Done():
		sugar.Infow("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	sugar.Infow("Server stopped")
}
