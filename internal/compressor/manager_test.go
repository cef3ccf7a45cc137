package compressor

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "image-squeezer/internal/errors"
	"image-squeezer/internal/handles"
)

func TestManager_CreateGetRemove(t *testing.T) {
	reg := handles.NewRegistry()
	m := NewManager(ManagerConfig{Encoder: newFakeEncoder(), Handles: reg, Logger: quietLogger()})

	s := m.Create(nil)
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	s.Accept(pngCandidate("a.png", make([]byte, 10)))
	s.Wait()
	if reg.Live() != 2 {
		t.Fatalf("Live() = %d, want 2", reg.Live())
	}

	if err := m.Remove(s.ID()); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if reg.Live() != 0 {
		t.Errorf("Live() after Remove = %d, want 0", reg.Live())
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrSessionNotFound", err)
	}
	if err := m.Remove(s.ID()); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("second Remove() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_GetOrCreateReusesSession(t *testing.T) {
	m := NewManager(ManagerConfig{Encoder: newFakeEncoder(), Logger: quietLogger(), DefaultQuality: 65})

	built := 0
	newSink := func() Sink {
		built++
		return nil
	}
	a := m.GetOrCreate("chat-1", newSink)
	b := m.GetOrCreate("chat-1", newSink)
	if a != b || built != 1 {
		t.Errorf("GetOrCreate returned distinct sessions or built %d sinks", built)
	}
	if q := a.Snapshot().Quality; q != 65 {
		t.Errorf("Quality = %d, want configured default 65", q)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestManager_GetOrCreateReplacesClosedSession(t *testing.T) {
	m := NewManager(ManagerConfig{Encoder: newFakeEncoder(), Logger: quietLogger()})

	old := m.GetOrCreate("chat-1", nil)
	old.Close()

	fresh := m.GetOrCreate("chat-1", nil)
	if fresh == old || fresh.Closed() {
		t.Fatal("GetOrCreate returned the closed session")
	}
	if err := fresh.SetQuality(40); err != nil {
		t.Errorf("SetQuality() on replacement error = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestManager_SweepExpiresIdleSessions(t *testing.T) {
	reg := handles.NewRegistry()
	m := NewManager(ManagerConfig{
		Encoder: newFakeEncoder(),
		Handles: reg,
		IdleTTL: time.Minute,
		Logger:  quietLogger(),
	})

	old := m.Create(nil)
	old.Accept(pngCandidate("a.png", make([]byte, 10)))
	old.Wait()
	fresh := m.Create(nil)

	// Only sessions idle for longer than the TTL go.
	if n := m.Sweep(time.Now().Add(30 * time.Second)); n != 0 {
		t.Fatalf("Sweep() = %d, want 0", n)
	}
	if n := m.Sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Fatalf("Sweep() = %d, want 2", n)
	}
	if m.Len() != 0 || reg.Live() != 0 {
		t.Errorf("Len() = %d, Live() = %d after sweep, want 0/0", m.Len(), reg.Live())
	}
	if _, err := m.Get(fresh.ID()); err == nil {
		t.Error("swept session still reachable")
	}
}

func TestManager_RunClosesOnCancel(t *testing.T) {
	reg := handles.NewRegistry()
	m := NewManager(ManagerConfig{Encoder: newFakeEncoder(), Handles: reg, IdleTTL: time.Hour, Logger: quietLogger()})
	s := m.Create(nil)
	s.Accept(pngCandidate("a.png", make([]byte, 10)))
	s.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if m.Len() != 0 || reg.Live() != 0 {
		t.Errorf("Len() = %d, Live() = %d, want 0/0", m.Len(), reg.Live())
	}
}
