package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-squeezer/internal/compressor"
	apperrors "image-squeezer/internal/errors"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/limiter"
	"image-squeezer/internal/settings"
)

// botAPI is the part of *tgbotapi.BotAPI the handler uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// HandlerConfig wires a Handler
type HandlerConfig struct {
	Manager        *compressor.Manager
	Handles        *handles.Registry
	Gate           *limiter.Gate
	Preferences    settings.Store
	Whitelist      *Whitelist
	MaxUploadBytes int64
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Handler processes Telegram updates
type Handler struct {
	bot    botAPI
	cfg    HandlerConfig
	http   *http.Client
	logger *slog.Logger
}

// NewHandler creates a new update handler
func NewHandler(bot botAPI, cfg HandlerConfig) *Handler {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Handler{
		bot:    bot,
		cfg:    cfg,
		http:   client,
		logger: cfg.Logger,
	}
}

// HandleUpdate processes a single update
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, allowed := h.cfg.Whitelist.CheckAccess(update)
	if !allowed {
		if chatID != 0 {
			h.sendText(chatID, apperrors.ErrUnauthorized.UserMsg)
		}
		return
	}

	msg := update.Message

	if msg.IsCommand() {
		h.handleCommand(msg)
		return
	}

	if c, err := h.candidate(ctx, msg); err != nil {
		h.logger.Error("failed to fetch file", "error", err, "user_id", userID)
		h.sendText(chatID, apperrors.GetUserMessage(err))
	} else if c != nil {
		// A false result means the idle sweeper closed the session after
		// it was looked up; the next lookup creates a fresh one.
		if !h.session(chatID).Accept(c) {
			h.session(chatID).Accept(c)
		}
	}
}

func (h *Handler) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		h.sendText(chatID,
			"Welcome to Image Squeezer!\n\n"+
				"Send me a photo or an image file and I'll recompress it as JPEG.\n\n"+
				"Commands:\n"+
				"/quality N - set quality from 1 to 100 (default 80)\n"+
				"/download - get the compressed file\n"+
				"/reset - start over\n"+
				"/settings - show or toggle preview options\n"+
				"/status - service status")

	case "help":
		h.sendText(chatID,
			"Send an image as a photo or as a file. Files keep their original bytes, "+
				"photos are already recompressed by Telegram.\n\n"+
				"Change /quality to try another level; the preview updates each time. "+
				"Use /download when you're happy with it.")

	case "quality":
		h.handleQuality(msg)

	case "download":
		h.handleDownload(msg)

	case "reset":
		h.session(chatID).Reset()

	case "settings":
		h.handleSettings(msg)

	case "status":
		h.sendText(chatID, fmt.Sprintf(
			"Active encodes: %d\nOpen sessions: %d\nLive previews: %d",
			h.cfg.Gate.ActiveCount(), h.cfg.Manager.Len(), h.cfg.Handles.Live()))

	default:
		h.sendText(chatID, "Unknown command. Use /help for available commands.")
	}
}

func (h *Handler) handleQuality(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	arg := strings.TrimSuffix(strings.TrimSpace(msg.CommandArguments()), "%")
	if arg == "" {
		h.sendText(chatID, fmt.Sprintf("Current quality: %d%%", h.session(chatID).Snapshot().Quality))
		return
	}

	percent, err := strconv.Atoi(arg)
	if err != nil {
		h.sendText(chatID, apperrors.ErrInvalidQuality.UserMsg)
		return
	}

	s := h.session(chatID)
	err = s.SetQuality(percent)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		s = h.session(chatID)
		err = s.SetQuality(percent)
	}
	if err != nil {
		h.sendText(chatID, apperrors.GetUserMessage(err))
		return
	}
	if !s.Snapshot().Controls {
		h.sendText(chatID, fmt.Sprintf("Quality set to %d%%. Send an image to compress.", percent))
	}
}

func (h *Handler) handleDownload(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ok, err := h.session(chatID).Export(func(d compressor.Download) error {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  d.Name,
			Bytes: d.Data,
		})
		_, err := h.bot.Send(doc)
		return err
	})
	if !ok {
		h.sendText(chatID, apperrors.ErrNothingToDownload.UserMsg)
		return
	}
	if err != nil {
		h.logger.Error("failed to send document", "error", err, "chat_id", chatID)
	}
}

func (h *Handler) handleSettings(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	prefs, err := h.cfg.Preferences.Get(chatID)
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err, "chat_id", chatID)
		h.sendText(chatID, apperrors.GetUserMessage(err))
		return
	}

	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "":
	case "original":
		prefs.ShowOriginal = !prefs.ShowOriginal
	case "details":
		prefs.ShowDetails = !prefs.ShowDetails
	default:
		h.sendText(chatID, "Usage: /settings [original|details]")
		return
	}

	if err := h.cfg.Preferences.Save(prefs); err != nil {
		h.logger.Error("failed to save preferences", "error", err, "chat_id", chatID)
		h.sendText(chatID, apperrors.GetUserMessage(err))
		return
	}

	h.sendText(chatID, fmt.Sprintf(
		"Show original details: %s\nShow compressed details: %s\n\n"+
			"Toggle with /settings original or /settings details",
		onOff(prefs.ShowOriginal), onOff(prefs.ShowDetails)))
}

// candidate turns a photo or document message into a selection candidate.
// It returns nil for messages that carry no file.
func (h *Handler) candidate(ctx context.Context, msg *tgbotapi.Message) (*compressor.Candidate, error) {
	var fileID, name, mimeType string
	var size int

	switch {
	case len(msg.Photo) > 0:
		// Photos arrive in several sizes; the last is the largest.
		p := msg.Photo[len(msg.Photo)-1]
		fileID, size = p.FileID, p.FileSize
		name = "photo.jpg"
		mimeType = "image/jpeg"
	case msg.Document != nil:
		fileID, size = msg.Document.FileID, msg.Document.FileSize
		name = msg.Document.FileName
		mimeType = msg.Document.MimeType
	default:
		return nil, nil
	}

	if !compressor.IsImageType(mimeType) {
		return nil, nil
	}
	if int64(size) > h.cfg.MaxUploadBytes {
		return nil, apperrors.ErrUploadTooLarge
	}

	data, err := h.fetch(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &compressor.Candidate{Name: name, MIMEType: mimeType, Data: data}, nil
}

func (h *Handler) fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file server returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > h.cfg.MaxUploadBytes {
		return nil, apperrors.ErrUploadTooLarge
	}
	return data, nil
}

func (h *Handler) session(chatID int64) *compressor.Session {
	return h.cfg.Manager.GetOrCreate(strconv.FormatInt(chatID, 10), func() compressor.Sink {
		return &chatSink{
			api:     h.bot,
			chatID:  chatID,
			handles: h.cfg.Handles,
			prefs:   h.cfg.Preferences,
			logger:  h.logger,
		}
	})
}

func (h *Handler) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
