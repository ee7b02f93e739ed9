package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/jfoltran/moduleguide/internal/metrics"
	"github.com/jfoltran/moduleguide/internal/watch"
)

// Message is pushed to live-reload clients.
type Message struct {
	Type    string   `json:"type"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Hub manages live-reload WebSocket clients.
type Hub struct {
	collector *metrics.Collector
	logger    zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
}

func newHub(collector *metrics.Collector, logger zerolog.Logger) *Hub {
	return &Hub{
		collector: collector,
		logger:    logger.With().Str("component", "ws-hub").Logger(),
		clients:   make(map[*wsClient]struct{}),
	}
}

// Reload tells every client to reload after the given changes.
func (h *Hub) Reload(changes []watch.Change) {
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	h.collector.RecordReload(paths)
	h.logger.Info().Strs("paths", paths).Msg("page reload")
	h.broadcast(Message{Type: "full-reload", Paths: paths})
}

// Error shows msg in the clients' error overlay.
func (h *Hub) Error(msg string) {
	h.broadcast(Message{Type: "error", Message: msg})
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Err(err).Msg("marshal ws message")
		return
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.remove(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.collector.SetClients(n)
	h.logger.Debug().Int("clients", n).Msg("ws client connected")
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.collector.SetClients(n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.collector.SetClients(0)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow cross-origin for dev.
	})
	if err != nil {
		h.logger.Err(err).Msg("ws accept")
		return
	}

	client := &wsClient{conn: conn}
	h.add(client)

	if data, err := json.Marshal(Message{Type: "connected"}); err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}

	// Keep connection alive by reading (client may send pings).
	for {
		_, _, err := conn.Read(r.Context())
		if err != nil {
			h.remove(client)
			return
		}
	}
}

// handleEvents streams collector snapshots to dashboard clients, starting
// with the current state.
func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Err(err).Msg("ws accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := h.collector.Subscribe()
	defer h.collector.Unsubscribe(ch)

	// Dashboard clients never send; CloseRead cancels ctx when they leave.
	ctx := conn.CloseRead(r.Context())

	send := func(snap metrics.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, data)
	}

	if err := send(h.collector.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				return
			}
		}
	}
}
