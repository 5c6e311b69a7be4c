// Package remote defines the contract of the owner-scoped relational store
// and its change feed.
package remote

import (
	"context"
	"errors"

	"sakinah/internal/core"
)

type (
	Table string

	Kind string
)

const (
	TableCategories   Table = "categories"
	TableTransactions Table = "transactions"

	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

var (
	ErrNoOwner      = errors.New("owner is required")
	ErrNotFound     = errors.New("row not found")
	ErrConflict     = errors.New("row already exists")
	ErrUnknownTable = errors.New("unknown table")
)

// Event is one change delivered by a subscription. Only the row matching
// Table is set; delete events may carry nothing but the id.
type Event struct {
	Table       Table            `json:"table"`
	Kind        Kind             `json:"kind"`
	Category    core.Category    `json:"category"`
	Transaction core.Transaction `json:"transaction"`
}

// RowID returns the id of the affected row.
func (e Event) RowID() string {
	if e.Table == TableCategories {
		return e.Category.ID
	}
	return e.Transaction.ID
}

// CategoryPatch is a partial update; nil fields are left untouched.
type CategoryPatch struct {
	Name *string      `json:"name,omitempty"`
	Type *core.TxType `json:"type,omitempty"`
}

func (p CategoryPatch) Apply(c core.Category) core.Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	return c
}

// TransactionPatch is a partial update; nil fields are left untouched.
type TransactionPatch struct {
	Type         *core.TxType  `json:"type,omitempty"`
	Amount       *int64        `json:"amount,omitempty"`
	Date         *string       `json:"date,omitempty"`
	Account      *core.Account `json:"account,omitempty"`
	Category     *string       `json:"category,omitempty"`
	Description  *string       `json:"description,omitempty"`
	Counterparty *string       `json:"counterparty,omitempty"`
}

func (p TransactionPatch) Apply(t core.Transaction) core.Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Account != nil {
		t.Account = *p.Account
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Counterparty != nil {
		t.Counterparty = *p.Counterparty
	}
	return t
}

// Ports for outbound adapters.
type (
	CategoryStore interface {
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
		InsertCategory(ctx context.Context, owner string, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, owner, id string, patch CategoryPatch) error
		DeleteCategory(ctx context.Context, owner, id string) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
		InsertTransaction(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, owner, id string, patch TransactionPatch) error
		DeleteTransaction(ctx context.Context, owner, id string) error
		// DeleteTransactions removes several rows in one call.
		DeleteTransactions(ctx context.Context, owner string, ids []string) error
	}

	// Subscription is an open change feed for one (owner, table) pair.
	Subscription interface {
		Unsubscribe() error
	}

	Handler func(Event)

	Feed interface {
		Subscribe(ctx context.Context, owner string, table Table, h Handler) (Subscription, error)
	}

	// Broker carries change events between writers and subscribers.
	Broker interface {
		Feed
		Publish(ctx context.Context, owner string, ev Event) error
	}

	Gateway interface {
		CategoryStore
		TransactionStore
		Feed
		Close() error
	}
)

// ValidTable reports whether t names a known table.
func ValidTable(t Table) bool {
	return t == TableCategories || t == TableTransactions
}

// Assignment is one column written by a patch, for SQL backends.
type Assignment struct {
	Column string
	Value  any
}

func (p CategoryPatch) Assignments() []Assignment {
	var out []Assignment
	if p.Name != nil {
		out = append(out, Assignment{"name", *p.Name})
	}
	if p.Type != nil {
		out = append(out, Assignment{"type", string(*p.Type)})
	}
	return out
}

func (p TransactionPatch) Assignments() []Assignment {
	var out []Assignment
	if p.Type != nil {
		out = append(out, Assignment{"type", string(*p.Type)})
	}
	if p.Amount != nil {
		out = append(out, Assignment{"amount", *p.Amount})
	}
	if p.Date != nil {
		out = append(out, Assignment{"date", *p.Date})
	}
	if p.Account != nil {
		out = append(out, Assignment{"account", string(*p.Account)})
	}
	if p.Category != nil {
		out = append(out, Assignment{"category", *p.Category})
	}
	if p.Description != nil {
		out = append(out, Assignment{"description", *p.Description})
	}
	if p.Counterparty != nil {
		out = append(out, Assignment{"counterparty", *p.Counterparty})
	}
	return out
}
