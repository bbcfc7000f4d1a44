// Package matchd is a development matching service: it queues clients, pairs
// them into rooms and relays chat lines back to both members.
package matchd

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/stranger-chat/internal/transport"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

const outgoingBuffer = 32

// Peer represents a connected client with transport-agnostic connection.
type Peer struct {
	ID       string
	Conn     transport.Conn
	Outgoing chan []byte

	room   string
	queued bool
}

// NewPeer wraps conn with a fresh connection id.
func NewPeer(conn transport.Conn) *Peer {
	return &Peer{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, outgoingBuffer),
	}
}

// Hub tracks connected peers, the waiting queue and the room table.
type Hub struct {
	mu     sync.Mutex
	peers  map[*Peer]bool
	queue  []*Peer
	rooms  map[string][]*Peer
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		peers:  make(map[*Peer]bool),
		rooms:  make(map[string][]*Peer),
		logger: logger,
	}
}

// Register adds a peer and tells it its connection id.
func (h *Hub) Register(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = true
	h.send(p, protocol.Event{Name: protocol.EventConnected, Value: p.ID})
}

// Unregister removes a peer from the queue and its room. The remaining room
// member is not told; it keeps the room until it disconnects too.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)

	if p.queued {
		for i, q := range h.queue {
			if q == p {
				h.queue = append(h.queue[:i], h.queue[i+1:]...)
				break
			}
		}
		p.queued = false
	}

	if p.room != "" {
		members := h.rooms[p.room][:0]
		for _, m := range h.rooms[p.room] {
			if m != p {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			delete(h.rooms, p.room)
		} else {
			h.rooms[p.room] = members
		}
		p.room = ""
	}
}

// Join pairs p with the longest-waiting peer, or queues it. A peer that is
// already queued or paired is left alone.
func (h *Hub) Join(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.peers[p] || p.queued || p.room != "" {
		return
	}
	if len(h.queue) == 0 {
		p.queued = true
		h.queue = append(h.queue, p)
		return
	}

	other := h.queue[0]
	h.queue = h.queue[1:]
	other.queued = false

	room := uuid.NewString()
	h.rooms[room] = []*Peer{other, p}
	other.room = room
	p.room = room

	h.logger.Info("paired", "room", room, "a", other.ID, "b", p.ID)
	joined := protocol.Event{Name: protocol.EventJoined, Value: room}
	h.send(other, joined)
	h.send(p, joined)
}

// Relay delivers message to every member of room, including the sender.
// Lines for a room the sender is not in are dropped.
func (h *Hub) Relay(p *Peer, room, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room == "" || p.room != room {
		h.logger.Debug("dropping message for foreign room", "peer", p.ID, "room", room)
		return
	}
	ev := protocol.NewChatEvent(protocol.EventReceiveMessage, room, message, p.ID)
	for _, member := range h.rooms[room] {
		h.send(member, ev)
	}
}

// CloseAll closes every peer connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		_ = p.Conn.Close()
	}
}

// ClientCount returns number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// QueueLen returns number of peers waiting for a stranger.
func (h *Hub) QueueLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// RoomCount returns number of open rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// send queues ev for p without blocking. Must be called with h.mu held.
func (h *Hub) send(p *Peer, ev protocol.Event) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Error("failed to encode event", "event", ev.Name, "error", err)
		return
	}
	select {
	case p.Outgoing <- data:
	default:
		h.logger.Warn("peer outgoing buffer full, dropping event", "peer", p.ID, "event", ev.Name)
	}
}
