package docstore

import "sync"

// Hub fans change events out to per-collection subscribers. Store
// implementations publish into a Hub; streams consume from it via Watch.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Change]struct{}
}

// NewHub constructs a hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Change]struct{})}
}

// Subscribe registers a subscriber for one collection. The cancel func is
// idempotent; after it returns the channel is closed and receives nothing.
func (h *Hub) Subscribe(collection string) (<-chan Change, func()) {
	ch := make(chan Change, 16)
	h.mu.Lock()
	set, ok := h.subs[collection]
	if !ok {
		set = make(map[chan Change]struct{})
		h.subs[collection] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[collection], ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers the change to every subscriber of its collection. A
// subscriber that cannot keep up loses the oldest buffered event; consumers
// re-read the store on acknowledged changes, so a dropped event costs one
// refresh, not correctness.
func (h *Hub) Publish(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[change.Collection] {
		select {
		case ch <- change:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- change:
			default:
			}
		}
	}
}
