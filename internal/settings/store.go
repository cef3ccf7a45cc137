package settings

// ChatPreferences controls what the bot sends alongside each compressed preview
type ChatPreferences struct {
	ChatID int64
	// ShowOriginal adds the original's metadata as a separate message once the
	// source has been read.
	ShowOriginal bool
	// ShowDetails puts size, type and saved percentage in the preview caption.
	ShowDetails bool
}

// Store defines the interface for preference persistence
type Store interface {
	// Get retrieves chat preferences, returning defaults if none exist
	Get(chatID int64) (*ChatPreferences, error)
	// Save persists chat preferences
	Save(prefs *ChatPreferences) error
	// Close releases resources
	Close() error
}

// Defaults holds the preferences a chat starts with
type Defaults struct {
	ShowOriginal bool
	ShowDetails  bool
}
