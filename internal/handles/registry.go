// Package handles issues revocable references to in-memory image bytes so
// they can be rendered by a front end without being written to storage.
package handles

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PathPrefix is where the web front end serves handle content.
const PathPrefix = "/blobs/"

// Handle is a live reference to a blob
type Handle struct {
	ID       string
	MIMEType string
	Size     int64
}

// URL returns the path a browser can load the blob from
func (h Handle) URL() string {
	return PathPrefix + h.ID
}

// ParseURL extracts the handle id from a URL produced by Handle.URL
func ParseURL(url string) (string, bool) {
	id, ok := strings.CutPrefix(url, PathPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Blob is the content behind a handle
type Blob struct {
	Data     []byte
	MIMEType string
}

// Registry tracks every live handle. Each Create must be matched by exactly
// one Release.
type Registry struct {
	mu    sync.RWMutex
	blobs map[string]Blob

	created  uint64
	released uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		blobs: make(map[string]Blob),
	}
}

// Create registers data under a fresh handle
func (r *Registry) Create(data []byte, mimeType string) Handle {
	id := uuid.New().String()

	r.mu.Lock()
	r.blobs[id] = Blob{Data: data, MIMEType: mimeType}
	r.created++
	r.mu.Unlock()

	return Handle{ID: id, MIMEType: mimeType, Size: int64(len(data))}
}

// Release revokes a handle. It reports false if the handle was not live,
// which callers treat as a lifecycle bug.
func (r *Registry) Release(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blobs[h.ID]; !ok {
		return false
	}
	delete(r.blobs, h.ID)
	r.released++
	return true
}

// Get returns the blob behind a live handle id
func (r *Registry) Get(id string) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[id]
	return b, ok
}

// Live returns the number of unreleased handles
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Stats returns lifetime create and release counts
func (r *Registry) Stats() (created, released uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, r.released
}
