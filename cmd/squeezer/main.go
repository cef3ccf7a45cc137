package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"image-squeezer/internal/compressor"
	"image-squeezer/internal/config"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/image"
	"image-squeezer/internal/limiter"
	"image-squeezer/internal/logging"
	"image-squeezer/internal/settings"
	"image-squeezer/internal/telegram"
	"image-squeezer/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var wg sync.WaitGroup

	// Shared by every front end: one blob registry, one encode gate.
	registry := handles.NewRegistry()
	gate := limiter.NewGate(cfg.Image.MaxConcurrentEncodes)
	processor := image.NewProcessor(cfg.Image.MaxPixels)

	newManager := func(component string) *compressor.Manager {
		m := compressor.NewManager(compressor.ManagerConfig{
			DefaultQuality: cfg.Image.DefaultQuality,
			IdleTTL:        cfg.Server.SessionIdleTTL,
			Encoder:        processor,
			Handles:        registry,
			Gate:           gate,
			Logger:         logging.WithComponent(logger, component),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(rootCtx)
		}()
		return m
	}

	server := web.NewServer(web.ServerConfig{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadTimeout:    cfg.Server.ReadTimeout,
		DefaultQuality: cfg.Image.DefaultQuality,
		Manager:        newManager("web"),
		Handles:        registry,
		Gate:           gate,
		Logger:         logging.WithComponent(logger, "http"),
		StartTime:      time.Now(),
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error("http server error", "error", err)
			rootCancel()
		}
	}()

	if cfg.Telegram.Enabled() {
		prefs, err := settings.NewSQLiteStore(cfg.Storage.DBPath, settings.Defaults{ShowDetails: true})
		if err != nil {
			logger.Error("failed to open preference store", "error", err, "path", cfg.Storage.DBPath)
			os.Exit(1)
		}
		defer prefs.Close()

		bot, err := telegram.NewBot(
			cfg.Telegram,
			newManager("telegram"),
			registry,
			gate,
			prefs,
			cfg.Server.MaxUploadBytes,
			logging.WithComponent(logger, "telegram"),
		)
		if err != nil {
			logger.Error("failed to create telegram bot", "error", err,
				"token", logging.SanitizeToken(cfg.Telegram.BotToken))
			os.Exit(1)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot error", "error", err)
			}
		}()

		logger.Info("telegram front end enabled",
			"username", bot.Username(),
			"allowed_users", cfg.Telegram.AllowedUsers,
		)
	}

	logger.Info("image squeezer started",
		"addr", cfg.Server.Addr,
		"default_quality", cfg.Image.DefaultQuality,
		"max_encodes", cfg.Image.MaxConcurrentEncodes,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig)
	case <-rootCtx.Done():
	}

	rootCancel()

	shutdownTimeout := 15 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete", "live_handles", registry.Live())
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
}
