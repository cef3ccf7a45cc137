package telegram

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Whitelist manages allowed user IDs
type Whitelist struct {
	allowed map[int64]struct{}
	logger  *slog.Logger
}

// NewWhitelist creates a new whitelist from a slice of user IDs
func NewWhitelist(userIDs []int64, logger *slog.Logger) *Whitelist {
	allowed := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}
	return &Whitelist{
		allowed: allowed,
		logger:  logger,
	}
}

// IsAllowed checks if a user is whitelisted
func (w *Whitelist) IsAllowed(userID int64) bool {
	_, ok := w.allowed[userID]
	return ok
}

// CheckAccess validates access and returns the sender and chat.
// Group chats are refused: a session belongs to one person.
func (w *Whitelist) CheckAccess(update tgbotapi.Update) (userID int64, chatID int64, allowed bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return 0, 0, false
	}
	userID = msg.From.ID
	chatID = msg.Chat.ID

	if !msg.Chat.IsPrivate() {
		w.logger.Warn("group access refused", "chat_id", chatID, "user_id", userID)
		return userID, chatID, false
	}

	if !w.IsAllowed(userID) {
		w.logger.Warn("unauthorized access attempt",
			"user_id", userID,
			"username", msg.From.UserName,
		)
		return userID, chatID, false
	}

	return userID, chatID, true
}
