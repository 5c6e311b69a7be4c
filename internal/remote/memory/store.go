// Package memory is an in-process remote store. Rows are partitioned by
// owner and every write is echoed to the owner's subscribers through a Hub.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"sakinah/internal/core"
	"sakinah/internal/ids"
	"sakinah/internal/remote"
)

type partition struct {
	categories   []core.Category
	transactions []core.Transaction
}

type Store struct {
	mu     sync.Mutex
	owners map[string]*partition
	hub    *remote.Hub
	now    func() time.Time
}

var _ remote.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{
		owners: make(map[string]*partition),
		hub:    remote.NewHub(),
		now:    time.Now,
	}
}

// Hub exposes the change feed, mostly for tests that inject events.
func (s *Store) Hub() *remote.Hub {
	return s.hub
}

func (s *Store) part(owner string) *partition {
	p, ok := s.owners[owner]
	if !ok {
		p = &partition{}
		s.owners[owner] = p
	}
	return p
}

func (s *Store) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.part(owner).categories), nil
}

func (s *Store) InsertCategory(ctx context.Context, owner string, c core.Category) (core.Category, error) {
	if owner == "" {
		return core.Category{}, remote.ErrNoOwner
	}
	if c.ID == "" {
		c.ID = ids.New()
	}

	s.mu.Lock()
	p := s.part(owner)
	if slices.ContainsFunc(p.categories, func(x core.Category) bool { return x.ID == c.ID }) {
		s.mu.Unlock()
		return core.Category{}, remote.ErrConflict
	}
	p.categories = slices.Insert(p.categories, 0, c)
	s.mu.Unlock()

	s.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Insert, Category: c})
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, owner, id string, patch remote.CategoryPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}

	s.mu.Lock()
	p := s.part(owner)
	i := slices.IndexFunc(p.categories, func(x core.Category) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return remote.ErrNotFound
	}
	p.categories[i] = patch.Apply(p.categories[i])
	row := p.categories[i]
	s.mu.Unlock()

	s.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Update, Category: row})
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, owner, id string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}

	s.mu.Lock()
	p := s.part(owner)
	n := len(p.categories)
	p.categories = slices.DeleteFunc(p.categories, func(x core.Category) bool { return x.ID == id })
	removed := n != len(p.categories)
	s.mu.Unlock()

	if removed {
		s.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Delete, Category: core.Category{ID: id}})
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, owner string) ([]core.Transaction, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.part(owner).transactions), nil
}

// InsertTransaction stores t, newest first, stamping CreatedAt when unset.
func (s *Store) InsertTransaction(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error) {
	if owner == "" {
		return core.Transaction{}, remote.ErrNoOwner
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	p := s.part(owner)
	if slices.ContainsFunc(p.transactions, func(x core.Transaction) bool { return x.ID == t.ID }) {
		s.mu.Unlock()
		return core.Transaction{}, remote.ErrConflict
	}
	p.transactions = slices.Insert(p.transactions, 0, t)
	s.mu.Unlock()

	s.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Insert, Transaction: t})
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, owner, id string, patch remote.TransactionPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}

	s.mu.Lock()
	p := s.part(owner)
	i := slices.IndexFunc(p.transactions, func(x core.Transaction) bool { return x.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return remote.ErrNotFound
	}
	p.transactions[i] = patch.Apply(p.transactions[i])
	row := p.transactions[i]
	s.mu.Unlock()

	s.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Update, Transaction: row})
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id string) error {
	return s.DeleteTransactions(ctx, owner, []string{id})
}

// DeleteTransactions removes every listed row; unknown ids are skipped.
func (s *Store) DeleteTransactions(ctx context.Context, owner string, idList []string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}

	s.mu.Lock()
	p := s.part(owner)
	var gone []string
	p.transactions = slices.DeleteFunc(p.transactions, func(x core.Transaction) bool {
		if slices.Contains(idList, x.ID) {
			gone = append(gone, x.ID)
			return true
		}
		return false
	})
	s.mu.Unlock()

	for _, id := range gone {
		s.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Delete, Transaction: core.Transaction{ID: id}})
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, owner string, table remote.Table, h remote.Handler) (remote.Subscription, error) {
	return s.hub.Subscribe(ctx, owner, table, h)
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) publish(ctx context.Context, owner string, ev remote.Event) {
	_ = s.hub.Publish(ctx, owner, ev)
}
