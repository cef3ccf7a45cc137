package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-squeezer/internal/compressor"
	"image-squeezer/internal/config"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/limiter"
	"image-squeezer/internal/settings"
)

// Bot represents the Telegram bot
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	cfg     config.TelegramConfig
	logger  *slog.Logger

	// Track active message processing
	activeRequests sync.WaitGroup
}

// NewBot creates a new Telegram bot
func NewBot(
	cfg config.TelegramConfig,
	manager *compressor.Manager,
	registry *handles.Registry,
	gate *limiter.Gate,
	prefs settings.Store,
	maxUploadBytes int64,
	logger *slog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	handler := NewHandler(api, HandlerConfig{
		Manager:        manager,
		Handles:        registry,
		Gate:           gate,
		Preferences:    prefs,
		Whitelist:      NewWhitelist(cfg.AllowedUsers, logger),
		MaxUploadBytes: maxUploadBytes,
		HTTPClient:     &http.Client{Timeout: cfg.RequestTimeout},
		Logger:         logger,
	})

	return &Bot{
		api:     api,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run starts the bot and blocks until context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollingTimeout
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")

			b.api.StopReceivingUpdates()

			done := make(chan struct{})
			go func() {
				b.activeRequests.Wait()
				close(done)
			}()

			select {
			case <-done:
				b.logger.Info("all active requests completed")
			case <-time.After(10 * time.Second):
				b.logger.Warn("some requests may not have completed")
			}

			return ctx.Err()

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			b.activeRequests.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.activeRequests.Done()

				reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
				defer cancel()

				b.handler.HandleUpdate(reqCtx, upd)
			}(update)
		}
	}
}

// Username returns the bot's Telegram username
func (b *Bot) Username() string {
	return b.api.Self.UserName
}
