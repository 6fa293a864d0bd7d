// Package broadcast implements the server's fan-out engine: each
// outbound frame is encoded once and pushed onto every connected
// session's FIFO outbound queue, or onto a single session's queue for
// targeted sends (method replies, directed signal invokes).
package broadcast

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/noodles-scene/noodles-server/internal/core/wire"
)

// DefaultQueueCapacity bounds how many encoded frames may sit in a
// session's outbound queue before it is considered overflowed. The
// value is generous: a session should only ever approach it if its
// writer goroutine has stalled (slow network, dead client).
const DefaultQueueCapacity = 256

// Outbox is one session's FIFO outbound queue. The session's writer
// goroutine drains Frames(); nothing else reads from it.
type Outbox struct {
	ID     uuid.UUID
	frames chan []byte
}

// Frames returns the channel the owning session's writer goroutine
// drains.
func (o *Outbox) Frames() <-chan []byte { return o.frames }

// Hub owns the set of connected sessions' outboxes. Per spec §5, Hub is
// only ever touched from the server's core loop — it carries no
// internal locking of its own. The channels behind each Outbox are the
// only concurrency boundary: they hand encoded frames to each session's
// independent writer goroutine.
type Hub struct {
	sessions map[uuid.UUID]*Outbox
	capacity int
}

// NewHub returns a Hub whose per-session queues hold up to capacity
// frames before being considered overflowed. capacity <= 0 uses
// DefaultQueueCapacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Hub{sessions: make(map[uuid.UUID]*Outbox), capacity: capacity}
}

// Register creates and returns a fresh Outbox for id, replacing any
// prior one (the prior one's channel is simply dropped; its writer
// goroutine, if still running, should already have exited).
func (h *Hub) Register(id uuid.UUID) *Outbox {
	ob := &Outbox{ID: id, frames: make(chan []byte, h.capacity)}
	h.sessions[id] = ob
	return ob
}

// Unregister removes id from the fan-out set. It does not close the
// Outbox's channel — the owning session's writer goroutine is
// responsible for noticing teardown through other means (its read loop
// exiting, or a context cancellation) and returning on its own.
func (h *Hub) Unregister(id uuid.UUID) {
	delete(h.sessions, id)
}

// Sessions returns the IDs of every currently registered session, in
// no particular order.
func (h *Hub) Sessions() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(h.sessions))
	for id := range h.sessions {
		out = append(out, id)
	}
	return out
}

// QueueLen reports how many frames are currently queued for id, for
// Runtime's shutdown drain. It returns 0 for an unknown session.
func (h *Hub) QueueLen(id uuid.UUID) int {
	ob, ok := h.sessions[id]
	if !ok {
		return 0
	}
	return len(ob.frames)
}

// Broadcast encodes frame once and enqueues it onto every connected
// session's outbox. Sessions whose queue is full are skipped rather
// than blocked on — blocking here would let one stalled client stall
// delivery to every other client — and are returned so the caller can
// tear them down. The relative order of two Broadcast calls is
// preserved for every session that doesn't overflow between them,
// which is the causal-order guarantee spec §5 requires.
func (h *Hub) Broadcast(frame wire.Frame) (overflowed []uuid.UUID, err error) {
	data, err := frame.Encode()
	if err != nil {
		return nil, fmt.Errorf("broadcast: encode frame: %w", err)
	}
	for id, ob := range h.sessions {
		select {
		case ob.frames <- data:
		default:
			overflowed = append(overflowed, id)
		}
	}
	return overflowed, nil
}

// SendTo encodes frame and enqueues it onto a single session's outbox,
// for targeted replies and directed signal invokes. It reports whether
// the send landed: false means the session is unknown or its queue is
// full, either of which the caller should treat as grounds to tear the
// session down.
func (h *Hub) SendTo(id uuid.UUID, frame wire.Frame) (bool, error) {
	ob, ok := h.sessions[id]
	if !ok {
		return false, nil
	}
	data, err := frame.Encode()
	if err != nil {
		return false, fmt.Errorf("broadcast: encode frame: %w", err)
	}
	select {
	case ob.frames <- data:
		return true, nil
	default:
		return false, nil
	}
}
