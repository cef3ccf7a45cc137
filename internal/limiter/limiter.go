package limiter

import (
	"context"
	"sync"
)

// Gate bounds how many encodes run at once and tracks them per session
type Gate struct {
	slots chan struct{}

	mu          sync.Mutex
	active      map[string]int
	globalCount int
}

// NewGate creates a new gate
// maxConcurrent of 0 means unlimited concurrent encodes
func NewGate(maxConcurrent int) *Gate {
	g := &Gate{
		active: make(map[string]int),
	}
	if maxConcurrent > 0 {
		g.slots = make(chan struct{}, maxConcurrent)
	}
	return g
}

// Acquire blocks until a slot is free or ctx is done
func (g *Gate) Acquire(ctx context.Context, key string) error {
	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	g.active[key]++
	g.globalCount++
	g.mu.Unlock()
	return nil
}

// Release returns a slot taken by Acquire
func (g *Gate) Release(key string) {
	g.mu.Lock()
	n, exists := g.active[key]
	if !exists {
		g.mu.Unlock()
		return
	}
	if n <= 1 {
		delete(g.active, key)
	} else {
		g.active[key] = n - 1
	}
	g.globalCount--
	g.mu.Unlock()

	if g.slots != nil {
		<-g.slots
	}
}

// ActiveCount returns current active encode count
func (g *Gate) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.globalCount
}

// IsActive checks if a key has an encode in flight
func (g *Gate) IsActive(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.active[key]
	return exists
}
