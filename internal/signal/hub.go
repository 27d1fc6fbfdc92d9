// Package signal carries dispatch outcomes between the command router and
// interested subscribers. "Command not found" is an ordinary signal here,
// not an error: subsystems like tag fallback subscribe to it instead of
// matching error types across package boundaries.
package signal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
)

// Kinds published by the dispatcher.
const (
	KindMessage         = "message"
	KindCommandInvoked  = "command_invoked"
	KindCommandNotFound = "command_not_found"
	KindCommandError    = "command_error"
	KindTagRendered     = "tag_rendered"
	KindTagTimedOut     = "tag_timed_out"
	KindTagFailed       = "tag_failed"
)

// Signal is one dispatch event. Msg carries the originating message;
// Detail is kind-specific (matched command path, error text, tag name).
type Signal struct {
	ID     int64        `json:"id"`
	Kind   string       `json:"kind"`
	At     time.Time    `json:"at"`
	Msg    chat.Message `json:"msg"`
	Detail string       `json:"detail,omitempty"`
}

// Hub is an in-memory pub/sub with a small ring buffer for late clients.
type Hub struct {
	nextID atomic.Int64

	mu    sync.Mutex
	ring  []Signal
	start int
	size  int

	subs      map[int]chan Signal
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Signal, capacity),
		subs: make(map[int]chan Signal),
	}
}

// Publish fans a signal out to all subscribers and records it in the ring.
func (h *Hub) Publish(kind string, msg chat.Message, detail string) Signal {
	sig := Signal{
		ID:     h.nextID.Add(1),
		Kind:   kind,
		At:     time.Now().UTC(),
		Msg:    msg,
		Detail: detail,
	}

	h.mu.Lock()
	h.pushLocked(sig)
	for _, ch := range h.subs {
		// Don't let slow clients block producers.
		select {
		case ch <- sig:
		default:
		}
	}
	h.mu.Unlock()
	return sig
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe() (<-chan Signal, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Signal, 256)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered signals with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Signal {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Signal, 0, h.size)
	for i := 0; i < h.size; i++ {
		sig := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || sig.ID > lastID {
			out = append(out, sig)
		}
	}
	return out
}

// Seq returns the ID of the most recently published signal.
func (h *Hub) Seq() int64 {
	return h.nextID.Load()
}

func (h *Hub) pushLocked(sig Signal) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = sig
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = sig
	h.start = (h.start + 1) % capacity
}
