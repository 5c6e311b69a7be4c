package remote

import (
	"context"
	"slices"
	"sync"
)

type hubKey struct {
	owner string
	table Table
}

// Hub is an in-process Broker. Handlers run on the publisher's goroutine,
// in subscription order.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[hubKey]map[int]Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[hubKey]map[int]Handler)}
}

func (h *Hub) Subscribe(_ context.Context, owner string, table Table, fn Handler) (Subscription, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	if !ValidTable(table) {
		return nil, ErrUnknownTable
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	key := hubKey{owner: owner, table: table}
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]Handler)
	}
	id := h.nextID
	h.nextID++
	h.subs[key][id] = fn
	return &hubSubscription{hub: h, key: key, id: id}, nil
}

func (h *Hub) Publish(_ context.Context, owner string, ev Event) error {
	if owner == "" {
		return ErrNoOwner
	}
	h.mu.RLock()
	set := h.subs[hubKey{owner: owner, table: ev.Table}]
	handlers := make([]int, 0, len(set))
	for id := range set {
		handlers = append(handlers, id)
	}
	fns := make([]Handler, 0, len(set))
	slices.Sort(handlers)
	for _, id := range handlers {
		fns = append(fns, set[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for owner and table.
func (h *Hub) Subscribers(owner string, table Table) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[hubKey{owner: owner, table: table}])
}

func (h *Hub) remove(key hubKey, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], id)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

type hubSubscription struct {
	hub  *Hub
	key  hubKey
	id   int
	once sync.Once
}

func (s *hubSubscription) Unsubscribe() error {
	s.once.Do(func() { s.hub.remove(s.key, s.id) })
	return nil
}
