package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/core"
)

func tx(id string, amount int64) core.Transaction {
	return core.Transaction{ID: id, Type: core.Expense, Amount: amount, Date: "2025-09-01", Account: core.Cash, Category: "Makanan"}
}

func TestReplaceAndClear(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Owner())

	s.Replace("u1", []core.Category{{ID: "c1", Name: "Gaji", Type: core.Income}}, []core.Transaction{tx("t1", 10)})
	assert.Equal(t, "u1", s.Owner())
	assert.Len(t, s.Categories(), 1)
	assert.Len(t, s.Transactions(), 1)

	s.Clear()
	assert.Empty(t, s.Owner())
	assert.Empty(t, s.Categories())
	assert.Empty(t, s.Transactions())
}

func TestUpsertTransactionPrependsAndIsIdempotent(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(tx("t1", 10))
	s.UpsertTransaction(tx("t2", 20))

	got := s.Transactions()
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].ID, "new rows are prepended")

	s.UpsertTransaction(tx("t1", 10))
	assert.Len(t, s.Transactions(), 2, "duplicate insert must not add a row")

	s.UpsertTransaction(tx("t1", 99))
	updated, ok := s.Transaction("t1")
	require.True(t, ok)
	assert.Equal(t, int64(99), updated.Amount)
	assert.Equal(t, "t1", s.Transactions()[1].ID, "update keeps position")
}

func TestRemoveTransactions(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(tx("t1", 10))
	s.UpsertTransaction(tx("t2", 20))
	s.UpsertTransaction(tx("t3", 30))

	v := s.Version()
	assert.Equal(t, 2, s.RemoveTransactions("t1", "t3", "missing"))
	assert.Greater(t, s.Version(), v)

	v = s.Version()
	assert.Equal(t, 0, s.RemoveTransactions("missing"))
	assert.Equal(t, v, s.Version())

	_, ok := s.Transaction("t2")
	assert.True(t, ok)
}

func TestCategories(t *testing.T) {
	s := NewStore()
	s.UpsertCategory(core.Category{ID: "c1", Name: "Gaji", Type: core.Income})
	s.UpsertCategory(core.Category{ID: "c2", Name: "Makanan", Type: core.Expense})

	assert.Len(t, s.CategoriesByType(core.Income), 1)
	assert.Len(t, s.CategoriesByType(core.Expense), 1)

	s.UpsertCategory(core.Category{ID: "c1", Name: "Gaji Pokok", Type: core.Income})
	c, ok := s.Category("c1")
	require.True(t, ok)
	assert.Equal(t, "Gaji Pokok", c.Name)

	assert.True(t, s.RemoveCategory("c2"))
	assert.False(t, s.RemoveCategory("c2"))
	assert.Len(t, s.Categories(), 1)
}

func TestGettersReturnCopies(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(tx("t1", 10))
	got := s.Transactions()
	got[0].Amount = 999

	fresh, _ := s.Transaction("t1")
	assert.Equal(t, int64(10), fresh.Amount)
}
