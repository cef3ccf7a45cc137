package handles

import (
	"strings"
	"sync"
	"testing"
)

func TestRegistry_CreateGetRelease(t *testing.T) {
	r := NewRegistry()

	h := r.Create([]byte("abc"), "image/png")
	if h.Size != 3 || h.MIMEType != "image/png" {
		t.Fatalf("Create() = %+v", h)
	}
	if !strings.HasPrefix(h.URL(), PathPrefix) || !strings.HasSuffix(h.URL(), h.ID) {
		t.Errorf("URL() = %q", h.URL())
	}

	if id, ok := ParseURL(h.URL()); !ok || id != h.ID {
		t.Errorf("ParseURL(%q) = %q, %v", h.URL(), id, ok)
	}
	if _, ok := ParseURL("/elsewhere/x"); ok {
		t.Error("ParseURL accepted a foreign path")
	}

	blob, ok := r.Get(h.ID)
	if !ok || string(blob.Data) != "abc" || blob.MIMEType != "image/png" {
		t.Fatalf("Get() = %+v, %v", blob, ok)
	}
	if r.Live() != 1 {
		t.Errorf("Live() = %d, want 1", r.Live())
	}

	if !r.Release(h) {
		t.Fatal("first Release() = false, want true")
	}
	if r.Release(h) {
		t.Fatal("second Release() = true, want false")
	}
	if _, ok := r.Get(h.ID); ok {
		t.Error("Get() after release should miss")
	}

	created, released := r.Stats()
	if created != 1 || released != 1 {
		t.Errorf("Stats() = %d/%d, want 1/1", created, released)
	}
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.Create([]byte{1, 2, 3}, "image/jpeg")
			r.Get(h.ID)
			r.Release(h)
		}()
	}
	wg.Wait()

	if r.Live() != 0 {
		t.Errorf("Live() = %d, want 0", r.Live())
	}
}
