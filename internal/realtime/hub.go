package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// peer pairs a connection with its write lock. Websocket connections allow
// at most one concurrent writer, so every send goes through this lock.
type peer struct {
	conn Conn
	mu   sync.Mutex
}

func (p *peer) send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// Hub maps a ticket id to its currently open connections and fans inbound
// messages out to all of them. It is constructed once, owned by the process
// lifetime and handed to every connection handler; all mutations of the
// mapping happen under the mutex so a broadcast never observes a
// partially-updated set.
type Hub struct {
	mu    sync.Mutex
	conns map[uuid.UUID][]*peer
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID][]*peer),
		log:   log,
	}
}

// Connect registers an already-authorized connection under the ticket.
func (h *Hub) Connect(ticketID uuid.UUID, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[ticketID] = append(h.conns[ticketID], &peer{conn: c})
}

// Disconnect removes the connection if present; no-op when already absent.
// Empty sets are dropped so no entry dangles after the last peer leaves.
func (h *Hub) Disconnect(ticketID uuid.UUID, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[ticketID]
	for i, existing := range conns {
		if existing.conn == c {
			h.conns[ticketID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[ticketID]) == 0 {
		delete(h.conns, ticketID)
	}
}

// Broadcast sends v to every connection registered for the ticket, in
// registration order. Writes are serialized per connection, not across the
// set, so one slow peer only delays its own frame. A failed send is logged
// and skipped so one dead peer never blocks delivery to the others.
func (h *Hub) Broadcast(ticketID uuid.UUID, v any) {
	h.mu.Lock()
	conns := make([]*peer, len(h.conns[ticketID]))
	copy(conns, h.conns[ticketID])
	h.mu.Unlock()

	for _, p := range conns {
		if err := p.send(v); err != nil {
			h.log.Warn("broadcast send failed", "ticket_id", ticketID, "error", err)
		}
	}
}

// Size reports how many connections a ticket currently has.
func (h *Hub) Size(ticketID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[ticketID])
}
