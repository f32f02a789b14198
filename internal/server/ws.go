package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/malabook/mala/server/internal/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks the open chat connections, one room per appointment.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *Hub) register(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.rooms[room]
	if !ok {
		peers = make(map[*websocket.Conn]struct{})
		h.rooms[room] = peers
	}
	peers[conn] = struct{}{}
}

func (h *Hub) unregister(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(peers, conn)
	if len(peers) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast sends a text frame to every peer in the room. Peers whose
// writes fail are dropped so a dead connection can't wedge the room.
func (h *Hub) Broadcast(room, message string) {
	h.mu.RLock()
	peers := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		peers = append(peers, conn)
	}
	h.mu.RUnlock()

	for _, conn := range peers {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
			h.unregister(room, conn)
			_ = conn.Close()
		}
	}
}

// RoomSize reports the number of peers connected for an appointment.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// CloseAll shuts every connection down, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, peers := range h.rooms {
		for conn := range peers {
			_ = conn.WriteMessage(websocket.CloseMessage, nil)
			_ = conn.Close()
		}
		delete(h.rooms, room)
	}
}

func (s *Server) appointmentsWsHandler(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("appointment_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(r.Context(), "Failed to upgrade connection", "err", err)
		return
	}
	s.hub.register(room, conn)
	log.Info(r.Context(), "Chat peer connected", "appointment_id", room)

	defer func() {
		s.hub.unregister(room, conn)
		_ = conn.Close()
		s.hub.Broadcast(room, fmt.Sprintf("User left appointment %s chat", room))
		log.Info(r.Context(), "Chat peer disconnected", "appointment_id", room)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.Broadcast(room, fmt.Sprintf("Appointment %s: %s", room, data))
	}
}
