// Package cache holds the in-memory mirror of the active owner's categories
// and transactions.
//
// The store is a plain owned object: callers pass it around explicitly and it
// never reaches the remote store itself. Rows are kept most-recent-first by
// insertion; nothing is sorted here.
package cache

import (
	"slices"
	"sync"

	"sakinah/internal/core"
)

type Store struct {
	mu           sync.RWMutex
	owner        string
	categories   []core.Category
	transactions []core.Transaction
	version      uint64
}

func NewStore() *Store {
	return &Store{}
}

// Owner returns the owner whose rows are currently loaded, or "".
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Categories returns a copy of all cached categories.
func (s *Store) Categories() []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// CategoriesByType returns the cached categories of the given type.
func (s *Store) CategoriesByType(t core.TxType) []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Category looks a category up by id.
func (s *Store) Category(id string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.categories, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		return core.Category{}, false
	}
	return s.categories[i], true
}

// Transactions returns a copy of all cached transactions.
func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

// Transaction looks a transaction up by id.
func (s *Store) Transaction(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.transactions[i], true
}

// Replace swaps the whole content for a freshly loaded owner.
func (s *Store) Replace(owner string, cats []core.Category, txs []core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
	s.categories = slices.Clone(cats)
	s.transactions = slices.Clone(txs)
	s.version++
}

// Clear empties the store and forgets the owner.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = ""
	s.categories = nil
	s.transactions = nil
	s.version++
}

// UpsertCategory replaces the category with the same id in place, or
// prepends it when unseen. Applying the same row twice is a no-op.
func (s *Store) UpsertCategory(c core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.categories, func(x core.Category) bool { return x.ID == c.ID }); i >= 0 {
		s.categories[i] = c
	} else {
		s.categories = slices.Insert(s.categories, 0, c)
	}
	s.version++
}

// RemoveCategory deletes a category by id. It reports whether a row was removed.
func (s *Store) RemoveCategory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.categories)
	s.categories = slices.DeleteFunc(s.categories, func(c core.Category) bool { return c.ID == id })
	if len(s.categories) == n {
		return false
	}
	s.version++
	return true
}

// UpsertTransaction mirrors UpsertCategory for transactions.
func (s *Store) UpsertTransaction(t core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.transactions, func(x core.Transaction) bool { return x.ID == t.ID }); i >= 0 {
		s.transactions[i] = t
	} else {
		s.transactions = slices.Insert(s.transactions, 0, t)
	}
	s.version++
}

// RemoveTransactions deletes every listed id and returns how many rows went away.
func (s *Store) RemoveTransactions(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.transactions)
	s.transactions = slices.DeleteFunc(s.transactions, func(t core.Transaction) bool {
		return slices.Contains(ids, t.ID)
	})
	removed := n - len(s.transactions)
	if removed > 0 {
		s.version++
	}
	return removed
}
