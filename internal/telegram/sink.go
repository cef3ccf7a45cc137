package telegram

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-squeezer/internal/compressor"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/settings"
)

// chatSink renders session views as chat messages
type chatSink struct {
	api     botAPI
	chatID  int64
	handles *handles.Registry
	prefs   settings.Store
	logger  *slog.Logger
}

func (s *chatSink) Publish(v compressor.View) {
	switch v.Event {
	case compressor.EventSelected:
		s.sendText(fmt.Sprintf("Compressing at %d%%...", v.Quality))

	case compressor.EventPreview:
		if s.preferences().ShowOriginal && v.Original != nil {
			s.sendText("Original\n" + describe(v.Original, ""))
		}

	case compressor.EventCompressed:
		s.sendCompressed(v)

	case compressor.EventFailed:
		s.sendText(v.Error)

	case compressor.EventReset:
		s.sendText(fmt.Sprintf("Cleared. Quality is back to %d%%.", v.Quality))
	}
}

func (s *chatSink) sendCompressed(v compressor.View) {
	if v.Compressed == nil {
		return
	}
	id, ok := handles.ParseURL(v.Compressed.URL)
	if !ok {
		return
	}
	// A newer result may already have released this one.
	blob, ok := s.handles.Get(id)
	if !ok {
		return
	}

	photo := tgbotapi.NewPhoto(s.chatID, tgbotapi.FileBytes{
		Name:  compressor.DownloadName(v.Compressed.Name),
		Bytes: blob.Data,
	})
	photo.Caption = fmt.Sprintf("Quality %d%%", v.Quality)
	if s.preferences().ShowDetails {
		photo.Caption += "\n" + describe(v.Compressed, v.Saved)
	}
	photo.Caption += "\n/download to get the file"

	if _, err := s.api.Send(photo); err != nil {
		s.logger.Error("failed to send preview", "error", err, "chat_id", s.chatID)
	}
}

func (s *chatSink) preferences() settings.ChatPreferences {
	p, err := s.prefs.Get(s.chatID)
	if err != nil {
		s.logger.Error("failed to load chat preferences", "error", err, "chat_id", s.chatID)
		return settings.ChatPreferences{ChatID: s.chatID, ShowDetails: true}
	}
	return *p
}

func (s *chatSink) sendText(text string) {
	if _, err := s.api.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		s.logger.Error("failed to send message", "error", err, "chat_id", s.chatID)
	}
}

func describe(info *compressor.AssetInfo, saved string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nSize: %s\nType: %s", info.Name, info.Size, info.Type)
	if info.Width > 0 {
		fmt.Fprintf(&b, "\nDimensions: %dx%d", info.Width, info.Height)
	}
	if saved != "" {
		fmt.Fprintf(&b, "\nSaved: (%s)", saved)
	}
	return b.String()
}
