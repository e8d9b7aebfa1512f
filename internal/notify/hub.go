package notify

import (
	"context"
	"sync"

	"github.com/kidzo/gatesync/internal/models"
)

const (
	EventCounterSnapshot  = "counter-snapshot"
	EventCheckInCommitted = "check-in-committed"
)

// Event is one push to connected displays: either a totals snapshot or a
// committed check-in.
type Event struct {
	Type     string                  `json:"type"`
	Snapshot *models.CounterSnapshot `json:"snapshot,omitempty"`
	CheckIn  *models.CheckIn         `json:"checkIn,omitempty"`
}

// Hub fans events out to connected observers. Delivery is best-effort and
// at-most-once per observer: a slow or disconnected observer misses events,
// it never stalls the write path or other observers.
type Hub struct {
	mu      sync.RWMutex
	clients []chan Event
	buffer  int
}

func NewHub() *Hub {
	return &Hub{buffer: 16}
}

// Subscribe registers an observer and returns its event channel. The
// subscription is dropped and the channel closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.clients = append(h.clients, ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(ch)
	}()

	return ch
}

// Broadcast delivers the event to every current observer without blocking.
// Observers with a full buffer skip this event. Sends stay under the read
// lock: remove closes channels under the write lock, so a send can never
// land on a closed channel.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) BroadcastSnapshot(snap models.CounterSnapshot) {
	h.Broadcast(Event{Type: EventCounterSnapshot, Snapshot: &snap})
}

func (h *Hub) BroadcastCheckIn(c *models.CheckIn) {
	h.Broadcast(Event{Type: EventCheckInCommitted, CheckIn: c})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, c := range h.clients {
		if c == ch {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			close(ch)
			return
		}
	}
}
