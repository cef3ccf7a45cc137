package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite for persistence
type SQLiteStore struct {
	db       *sql.DB
	defaults Defaults
}

// NewSQLiteStore creates a new SQLite-backed preference store
func NewSQLiteStore(dbPath string, defaults Defaults) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_preferences (
			chat_id INTEGER PRIMARY KEY,
			show_original INTEGER NOT NULL DEFAULT 0,
			show_details INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, defaults: defaults}, nil
}

// Get retrieves chat preferences, returning defaults if none exist
func (s *SQLiteStore) Get(chatID int64) (*ChatPreferences, error) {
	var p ChatPreferences
	err := s.db.QueryRow(
		"SELECT chat_id, show_original, show_details FROM chat_preferences WHERE chat_id = ?",
		chatID,
	).Scan(&p.ChatID, &p.ShowOriginal, &p.ShowDetails)

	if errors.Is(err, sql.ErrNoRows) {
		return &ChatPreferences{
			ChatID:       chatID,
			ShowOriginal: s.defaults.ShowOriginal,
			ShowDetails:  s.defaults.ShowDetails,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query chat preferences: %w", err)
	}
	return &p, nil
}

// Save persists chat preferences using upsert
func (s *SQLiteStore) Save(p *ChatPreferences) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_preferences (chat_id, show_original, show_details)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			show_original = excluded.show_original,
			show_details = excluded.show_details
	`, p.ChatID, p.ShowOriginal, p.ShowDetails)

	if err != nil {
		return fmt.Errorf("save chat preferences: %w", err)
	}
	return nil
}

// Close releases database resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
