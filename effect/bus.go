package effect

import (
	"sync"
	"time"
)

// Kind is a lifecycle event kind.
type Kind string

const (
	KindMounted      Kind = "mounted"
	KindUnmounted    Kind = "unmounted"
	KindMountError   Kind = "mountError"
	KindUnmountError Kind = "unmountError"
)

// Kinds lists every lifecycle event kind.
var Kinds = []Kind{KindMounted, KindUnmounted, KindMountError, KindUnmountError}

// Event is a lifecycle notification for one effect.
type Event struct {
	Effect string         `json:"effect"`
	Kind   Kind           `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// Name returns the remote event name, "effects.<effect>.<kind>".
func (e Event) Name() string { return EventName(e.Effect, e.Kind) }

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	kind    Kind
	handler Handler
}

// Bus delivers events synchronously to its subscribers. Publishes are
// serialized, so every subscriber sees events in publish order. A handler
// must not publish on the bus it is subscribed to.
type Bus struct {
	pubMu sync.Mutex

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers h for all events. The returned function removes it.
func (b *Bus) Subscribe(h Handler) func() { return b.On("", h) }

// On registers h for events of one kind; an empty kind matches all. The
// returned function removes the handler.
func (b *Bus) On(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to matching handlers in registration order.
func (b *Bus) Publish(ev Event) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.kind == "" || s.kind == ev.Kind {
			s.handler(ev)
		}
	}
}
