package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives every published event.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// #region bus
// Bus delivers events synchronously to listeners in registration order.
// A panicking listener is logged and skipped; the rest still run.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	log    zerolog.Logger
}

// NewBus creates an empty bus that reports listener panics to log.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers fn and returns a handle that removes it. The handle is idempotent.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers each event to every listener, in order.
func (b *Bus) Publish(evs ...Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, ev := range evs {
		for _, s := range subs {
			b.deliver(s, ev)
		}
	}
}

func (b *Bus) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(ev.Kind())).
				Uint64("listener", s.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event listener panicked")
		}
	}()
	s.fn(ev)
}

// #endregion bus

// #region typed
// The helpers below subscribe to a single variant with a payload-typed callback.

// OnDecisionChange subscribes fn to DecisionChange events.
func OnDecisionChange(b *Bus, fn func(DecisionChange)) func() {
	return b.Subscribe(func(ev Event) {
		if e, ok := ev.(DecisionChange); ok {
			fn(e)
		}
	})
}

// OnHighConfidence subscribes fn to HighConfidence events.
func OnHighConfidence(b *Bus, fn func(HighConfidence)) func() {
	return b.Subscribe(func(ev Event) {
		if e, ok := ev.(HighConfidence); ok {
			fn(e)
		}
	})
}

// OnLowConfidence subscribes fn to LowConfidence events.
func OnLowConfidence(b *Bus, fn func(LowConfidence)) func() {
	return b.Subscribe(func(ev Event) {
		if e, ok := ev.(LowConfidence); ok {
			fn(e)
		}
	})
}

// OnFlipSignal subscribes fn to FlipSignal events.
func OnFlipSignal(b *Bus, fn func(FlipSignal)) func() {
	return b.Subscribe(func(ev Event) {
		if e, ok := ev.(FlipSignal); ok {
			fn(e)
		}
	})
}

// OnUnsafeEnvironment subscribes fn to UnsafeEnvironment events.
func OnUnsafeEnvironment(b *Bus, fn func(UnsafeEnvironment)) func() {
	return b.Subscribe(func(ev Event) {
		if e, ok := ev.(UnsafeEnvironment); ok {
			fn(e)
		}
	})
}

// #endregion typed
