package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/greyoak/score/internal/score/composite"
)

// ProgressEvent is one batch progress update pushed to websocket clients.
type ProgressEvent struct {
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressHub fans batch progress out to websocket subscribers. Slow
// clients are dropped rather than allowed to stall a batch.
type ProgressHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan ProgressEvent
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewProgressHub builds an empty hub.
func NewProgressHub(log zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		clients: make(map[*websocket.Conn]chan ProgressEvent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// Subscribe upgrades the connection and streams events until the client
// disconnects.
func (h *ProgressHub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	events := make(chan ProgressEvent, 64)
	h.mu.Lock()
	h.clients[conn] = events
	h.mu.Unlock()

	go h.writeLoop(conn, events)
	h.readLoop(conn)
}

func (h *ProgressHub) writeLoop(conn *websocket.Conn, events chan ProgressEvent) {
	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			h.drop(conn)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// readLoop discards client frames; its only job is detecting disconnects.
func (h *ProgressHub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if events, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(events)
	}
	h.mu.Unlock()
	conn.Close()
}

// Broadcast pushes one event to every subscriber, skipping any whose
// buffer is full.
func (h *ProgressHub) Broadcast(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, events := range h.clients {
		select {
		case events <- ev:
		default:
		}
	}
}

// Progress adapts the hub into a batch progress callback.
func (h *ProgressHub) Progress() composite.ProgressFunc {
	return func(done, total int) {
		pct := 0.0
		if total > 0 {
			pct = float64(done) / float64(total) * 100
		}
		h.Broadcast(ProgressEvent{
			Done:      done,
			Total:     total,
			Percent:   pct,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ProgressWS handles GET /ws/progress.
func (h *Handlers) ProgressWS(w http.ResponseWriter, r *http.Request) {
	h.hub.Subscribe(w, r)
}
