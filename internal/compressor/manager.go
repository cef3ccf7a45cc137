package compressor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "image-squeezer/internal/errors"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/limiter"
)

// ManagerConfig holds what every session of a manager shares
type ManagerConfig struct {
	DefaultQuality int
	IdleTTL        time.Duration
	Encoder        Encoder
	Handles        *handles.Registry
	Gate           *limiter.Gate
	Logger         *slog.Logger
}

// Manager keeps the live sessions of one front end
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Handles == nil {
		cfg.Handles = handles.NewRegistry()
	}
	if cfg.Gate == nil {
		cfg.Gate = limiter.NewGate(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session under a fresh random id
func (m *Manager) Create(sink Sink) *Session {
	return m.GetOrCreate(uuid.New().String(), func() Sink { return sink })
}

// GetOrCreate returns the session for id, creating it with the sink built by
// newSink when missing or already closed.
func (m *Manager) GetOrCreate(id string, newSink func() Sink) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && !s.Closed() {
		return s
	}

	var sink Sink
	if newSink != nil {
		sink = newSink()
	}
	s := NewSession(Options{
		ID:             id,
		DefaultQuality: m.cfg.DefaultQuality,
		Encoder:        m.cfg.Encoder,
		Handles:        m.cfg.Handles,
		Gate:           m.cfg.Gate,
		Sink:           sink,
		Logger:         m.logger,
	})
	m.sessions[id] = s
	m.logger.Debug("session created", "session_id", id)
	return s
}

// Get looks up a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the configured TTL and returns
// how many it closed. A zero TTL disables expiry.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.IdleSince()) > m.cfg.IdleTTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.logger.Info("session expired", "session_id", s.ID())
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// CloseAll closes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
