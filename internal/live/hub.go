// Package live pushes committed room snapshots to connected clients over
// WebSocket.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"example.com/grimoire/internal/auth"
	"example.com/grimoire/internal/game"
	"example.com/grimoire/internal/roomsync"
)

const (
	sendBuffer   = 16
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is the only message the hub sends.
type Snapshot struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Version  time.Time       `json:"stateVersion"`
	State    *game.GameState `json:"state"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	// version is the newest snapshot queued to this client, guarded by Hub.mu.
	version time.Time

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// RoomReader loads the current snapshot for newly connected clients.
type RoomReader interface {
	Get(ctx context.Context, code string) (roomsync.Room, error)
}

// Hub fans out snapshots per room. It implements roomsync.Publisher.
type Hub struct {
	log      *slog.Logger
	verifier auth.Verifier
	members  roomsync.Membership
	rooms    RoomReader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
}

func NewHub(log *slog.Logger, verifier auth.Verifier, members roomsync.Membership, rooms RoomReader) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		verifier: verifier,
		members:  members,
		rooms:    rooms,
		clients:  make(map[string]map[*client]struct{}),
	}
}

// Publish sends a snapshot to every client of the room. Concurrent commits
// may call Publish out of order, so a client never receives a version that is
// not after the last one it was sent. A client whose buffer is full is
// disconnected rather than blocking the sync path.
func (h *Hub) Publish(roomCode string, version time.Time, state *game.GameState) {
	msg, err := json.Marshal(Snapshot{Type: "snapshot", RoomCode: roomCode, Version: version, State: state})
	if err != nil {
		h.log.Error("encode snapshot", "room", roomCode, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[roomCode] {
		if !version.After(c.version) {
			continue
		}
		select {
		case c.send <- msg:
			c.version = version
		default:
			h.log.Warn("dropping slow live client", "room", roomCode, "user", c.userID)
			h.removeLocked(roomCode, c)
		}
	}
}

// Connections reports how many clients are attached to a room.
func (h *Hub) Connections(roomCode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[roomCode])
}

func (h *Hub) add(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[roomCode] == nil {
		h.clients[roomCode] = make(map[*client]struct{})
	}
	h.clients[roomCode][c] = struct{}{}
}

func (h *Hub) remove(roomCode string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomCode, c)
}

func (h *Hub) removeLocked(roomCode string, c *client) {
	set := h.clients[roomCode]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, roomCode)
	}
	c.close()
}

// ServeWS handles /ws/{roomCode}?token=... for room members.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	token := r.URL.Query().Get("token")
	if roomCode == "" || token == "" {
		http.Error(w, "missing room code or token", http.StatusBadRequest)
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ok, err := h.members.IsMember(r.Context(), roomCode, claims.UserID)
	if err != nil {
		h.log.Error("live membership lookup", "room", roomCode, "err", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not a member of this room", http.StatusForbidden)
		return
	}

	room, err := h.rooms.Get(r.Context(), roomCode)
	if errors.Is(err, roomsync.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("live room load", "room", roomCode, "err", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	first, err := json.Marshal(Snapshot{Type: "snapshot", RoomCode: roomCode, Version: room.Version, State: room.State})
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{userID: claims.UserID, conn: conn, send: make(chan []byte, sendBuffer), version: room.Version}
	c.send <- first
	h.add(roomCode, c)
	h.log.Debug("live client connected", "room", roomCode, "user", c.userID)

	go c.writeLoop()
	c.readLoop()

	h.remove(roomCode, c)
	h.log.Debug("live client disconnected", "room", roomCode, "user", c.userID)
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only keeps the connection alive; all writes go through /api/sync.
func (c *client) readLoop() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
