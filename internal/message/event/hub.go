package event

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Hub is the in-process event fan-out. Publish never blocks: a subscriber whose buffer
// is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{streams: map[string]map[string]chan Event{}}
}

func (h *Hub) Subscribe(key string, buffer int) (string, <-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	key = strings.TrimSpace(key)
	id := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.streams[key] == nil {
		h.streams[key] = map[string]chan Event{}
	}
	h.streams[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if streams, ok := h.streams[key]; ok {
				delete(streams, id)
				if len(streams) == 0 {
					delete(h.streams, key)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.streams[""], ev)
	if key := strings.TrimSpace(ev.ConversationID); key != "" {
		h.deliver(h.streams[key], ev)
	}
}

func (h *Hub) deliver(streams map[string]chan Event, ev Event) {
	for _, ch := range streams {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts events lost to full subscriber buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
