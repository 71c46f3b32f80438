package emit

import (
	"context"
	"fmt"
	"sync"
)

// Bus is the engine's event bus (§4.6): OnEvent registers an async
// subscriber, Emit fans the event out to every subscriber in its own
// goroutine so a slow subscriber can never block the caller, and forwards
// the same event to any attached Emitter sinks.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string]func(context.Context, Event)
	emitters []Emitter
	nextID   int
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]func(context.Context, Event))}
}

// OnEvent registers an async callback and returns a subscription ID usable
// with Unsubscribe.
func (b *Bus) OnEvent(cb func(context.Context, Event)) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("sub-%d", b.nextID)
	b.subs[id] = cb
	return id
}

// Unsubscribe removes a previously registered callback.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Attach adds an Emitter sink that receives every event Emit fans out,
// alongside the OnEvent callbacks. Use this to wire Log/OTel/Prometheus
// backends without the engine needing to know about them.
func (b *Bus) Attach(e Emitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitters = append(b.emitters, e)
}

// Emit fans event out to every subscriber and attached emitter. Subscriber
// callbacks run in their own goroutine each; Emit never blocks on them.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	cbs := make([]func(context.Context, Event), 0, len(b.subs))
	for _, cb := range b.subs {
		cbs = append(cbs, cb)
	}
	emitters := append([]Emitter(nil), b.emitters...)
	b.mu.RUnlock()

	for _, cb := range cbs {
		go cb(context.Background(), event)
	}
	for _, e := range emitters {
		e.Emit(event)
	}
}
