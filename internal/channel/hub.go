package channel

import (
	"sync"

	"bidio/utils"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultBuffer is the number of packets queued per subscriber before new
// ones are dropped for it.
const DefaultBuffer = 64

type subscriber struct {
	id string
	ch chan string
}

// Hub fans encoded packets out to the subscribers of one channel.
type Hub struct {
	mu     sync.Mutex // serializes publish against subscribe/unsubscribe
	subs   *xsync.MapOf[string, *subscriber]
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   xsync.NewMapOf[string, *subscriber](),
		buffer: buffer,
	}
}

// Subscribe registers id and returns its packet feed plus a function that
// removes it. A second subscription under the same id replaces the first,
// whose feed is closed.
func (h *Hub) Subscribe(id string) (<-chan string, func()) {
	sub := &subscriber{id: id, ch: make(chan string, h.buffer)}

	h.mu.Lock()
	if old, ok := h.subs.Load(id); ok {
		close(old.ch)
	}
	h.subs.Store(id, sub)
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if cur, ok := h.subs.Load(id); ok && cur == sub {
				h.subs.Delete(id)
				close(sub.ch)
			}
		})
	}
}

// Publish queues msg for every subscriber except the one with id except,
// returning how many received it.
func (h *Hub) Publish(msg string, except string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	h.subs.Range(func(id string, sub *subscriber) bool {
		if id == except {
			return true
		}
		select {
		case sub.ch <- msg:
			sent++
		default:
			utils.Warn("Subscriber buffer full, dropping packet", map[string]any{
				"conn": id,
			})
		}
		return true
	})
	return sent
}

// Len is the number of current subscribers.
func (h *Hub) Len() int {
	return h.subs.Size()
}

// Close detaches every subscriber and closes their feeds.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs.Range(func(id string, sub *subscriber) bool {
		close(sub.ch)
		h.subs.Delete(id)
		return true
	})
}
