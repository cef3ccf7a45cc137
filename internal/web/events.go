package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"image-squeezer/internal/compressor"
)

const (
	pongWait         = 30 * time.Second
	pingInterval     = 10 * time.Second
	writeWait        = 5 * time.Second
	subscriberBuffer = 16
)

// Hub fans a session's views out to its WebSocket subscribers
type Hub struct {
	mu   sync.Mutex
	subs map[chan compressor.View]struct{}
}

// NewHub creates a hub with no subscribers
func NewHub() *Hub {
	return &Hub{subs: make(map[chan compressor.View]struct{})}
}

// Publish implements compressor.Sink. A subscriber that falls behind loses
// its oldest queued view, never the newest.
func (h *Hub) Publish(v compressor.View) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel of views published from now on and a func
// that detaches it.
func (h *Hub) Subscribe() (<-chan compressor.View, func()) {
	ch := make(chan compressor.View, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// Subscribers returns the number of attached subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// streamViews upgrades the request, writes the current view and then every
// view from hub until the client goes away or the request context ends.
func streamViews(w http.ResponseWriter, r *http.Request, hub *Hub, snapshot func() compressor.View, logger *slog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	views, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The page never sends anything; reading only drives pongs and close frames.
	closed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return

		case err := <-closed:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read", "error", err)
			}
			return

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case v := <-views:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				logger.Debug("websocket write", "error", err)
				return
			}
		}
	}
}
