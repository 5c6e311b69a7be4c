// Package notify implements the payload-less "cache changed" broadcast.
//
// Consumers re-read the cache when they receive a signal. Signals coalesce:
// a subscriber that has not drained its channel sees a single pending signal
// no matter how many changes happened in between.
package notify

import "sync"

// EventName is the name used when the signal crosses a transport boundary
// (server-sent events, logs).
const EventName = "storage-updated"

type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener. The returned cancel func closes the
// channel and is safe to call more than once.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Notify signals every subscriber without blocking.
func (b *Bus) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
