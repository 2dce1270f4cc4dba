// Package ws streams live catalog changes to storefront clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Sections clients may watch. Everything else in the tree is private.
var watchable = map[string]bool{
	"carousel":           true,
	domain.KindMovies:    true,
	domain.KindSeries:    true,
	domain.KindOriginals: true,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// Message is one frame sent to the client. The first frame of a
// connection is a snapshot of the section's children.
type Message struct {
	Type string                     `json:"type"`
	Path string                     `json:"path"`
	Data json.RawMessage            `json:"data,omitempty"`
	Docs map[string]json.RawMessage `json:"docs,omitempty"`
}

// WatchHandler serves /ws/watch?path=<section>.
type WatchHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewWatchHandler creates a new WatchHandler.
func NewWatchHandler(s store.Store, logger *zap.Logger) *WatchHandler {
	return &WatchHandler{store: s, logger: logger.Named("ws")}
}

// Handle upgrades HTTP to WebSocket and streams the section until either
// side goes away.
func (h *WatchHandler) Handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !watchable[path] {
		http.Error(w, "unknown watch path", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.store.Watch(ctx, path)
	if err != nil {
		h.logger.Error("watch failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "watch unavailable", http.StatusServiceUnavailable)
		return
	}
	snapshot, err := h.store.Children(ctx, path)
	if err != nil {
		h.logger.Error("snapshot failed", zap.String("path", path), zap.Error(err))
		http.Error(w, "watch unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	h.logger.Debug("watcher connected", zap.String("path", path))

	// The read side only exists to notice the client closing.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, Message{Type: "snapshot", Path: path, Docs: snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, Message{Type: ev.Type, Path: ev.Path, Data: ev.Data}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WatchHandler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("watcher write failed", zap.Error(err))
		return err
	}
	return nil
}
