// Package events is the observer layer between collaborators and the
// simulation: the input collaborator publishes presses, controllers publish
// state changes, and the journal and API subscribe to everything.
package events

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	InputPrimary      Type = "input.primary"
	NPCState          Type = "npc.state"
	NPCDestroyed      Type = "npc.destroyed"
	ActorDisabled     Type = "actor.disabled"
	TransferStarted   Type = "transfer.started"
	TransferCompleted Type = "transfer.completed"
	TransferCancelled Type = "transfer.cancelled"
	TransferDropped   Type = "transfer.dropped"
	GiverConsumed     Type = "giver.consumed"
	PlayerBand        Type = "player.band"
	BoostStarted      Type = "boost.started"
	BoostEnded        Type = "boost.ended"
)

// Event is a notable occurrence in the simulation.
type Event struct {
	Type    Type           `json:"type"`
	Tick    uint64         `json:"tick"`
	Time    time.Time      `json:"time"`
	Actor   string         `json:"actor,omitempty"`
	Target  string         `json:"target,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Handler receives published events.
type Handler func(ctx context.Context, e Event)

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) {
	if f == nil {
		return
	}
	f(ctx, e)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// Nop returns a publisher that discards everything.
func Nop() Publisher { return nopPublisher{} }

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. Handlers may subscribe or unsubscribe while an
// event is being delivered; the change applies from the next Publish.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	clock  func() time.Time
	tick   func() uint64
}

type subscription struct {
	typ     Type // empty matches every type
	handler Handler
}

// NewBus creates an empty bus. tick supplies the current tick for events
// published without one; it may be nil.
func NewBus(tick func() uint64) *Bus {
	return &Bus{
		subs:  make(map[int]subscription),
		clock: time.Now,
		tick:  tick,
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	return b.add(subscription{typ: t, handler: h})
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add(subscription{handler: h})
}

func (b *Bus) add(s subscription) func() {
	if s.handler == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish stamps e and delivers it to matching subscribers.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Type == "" {
		return
	}
	if e.Time.IsZero() {
		e.Time = b.clock()
	}
	if e.Tick == 0 && b.tick != nil {
		e.Tick = b.tick()
	}
	for _, h := range b.matching(e.Type) {
		h(ctx, e)
	}
}

func (b *Bus) matching(t Type) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int, 0, len(b.subs))
	for id, s := range b.subs {
		if s.typ == "" || s.typ == t {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.subs[id].handler)
	}
	return out
}
