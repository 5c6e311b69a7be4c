package services

import (
	"context"
	"fmt"

	"sakinah/internal/core"
	"sakinah/internal/ids"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

// lockOwner takes c.mu and returns the active owner. Writes need a loaded
// owner: while Loading the cache still holds the previous snapshot, which
// Replace is about to drop. On error the lock is already released.
func (c *Controller) lockOwner() (string, error) {
	c.mu.Lock()
	switch {
	case c.state == Unauthenticated || c.owner == "":
		c.mu.Unlock()
		return "", ErrNotAuthenticated
	case c.state == Loading:
		c.mu.Unlock()
		return "", ErrLoading
	}
	return c.owner, nil
}

// dispatch queues a remote write behind the previous one and returns at
// once. Writes reach the gateway in the order they were dispatched. Failures
// are logged and never rolled back. Callers hold c.mu so queue order matches
// cache order.
func (c *Controller) dispatch(owner, op string, fields log.LogFields, write func(ctx context.Context) error) {
	prev := c.lastWrite
	done := make(chan struct{})
	c.lastWrite = done

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
		defer cancel()

		err := write(ctx)
		if err == nil {
			return
		}
		if c.Owner() != owner {
			c.logger.Debug("Remote write failed after sign-out", "error", err)
			return
		}
		c.logger.LogError(ctx, "Remote write failed", err, op, fields.WithOwner(owner))
	}()
}

func (c *Controller) AddCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	if cat.ID == "" {
		cat.ID = ids.New()
	}

	owner, err := c.lockOwner()
	if err != nil {
		return core.Category{}, err
	}
	c.store.UpsertCategory(cat)
	c.dispatch(owner, log.OpCreate, log.NewFields().WithCategory(cat.Name), func(ctx context.Context) error {
		_, err := c.gateway.InsertCategory(ctx, owner, cat)
		return err
	})
	c.mu.Unlock()
	c.bus.Notify()
	return cat, nil
}

func (c *Controller) UpdateCategory(ctx context.Context, id string, patch remote.CategoryPatch) (core.Category, error) {
	owner, err := c.lockOwner()
	if err != nil {
		return core.Category{}, err
	}
	cur, ok := c.store.Category(id)
	if !ok {
		c.mu.Unlock()
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return core.Category{}, err
	}
	c.store.UpsertCategory(next)
	c.dispatch(owner, log.OpUpdate, log.NewFields().WithCategory(next.Name), func(ctx context.Context) error {
		return c.gateway.UpdateCategory(ctx, owner, id, patch)
	})
	c.mu.Unlock()
	c.bus.Notify()
	return next, nil
}

func (c *Controller) RemoveCategory(ctx context.Context, id string) error {
	owner, err := c.lockOwner()
	if err != nil {
		return err
	}
	if !c.store.RemoveCategory(id) {
		c.mu.Unlock()
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	c.dispatch(owner, log.OpDelete, log.NewFields().WithCategory(id), func(ctx context.Context) error {
		return c.gateway.DeleteCategory(ctx, owner, id)
	})
	c.mu.Unlock()
	c.bus.Notify()
	return nil
}

// AddTransaction assigns an id and created_at when missing, then stores tx.
func (c *Controller) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = ids.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = c.config.Now().UTC()
	}

	owner, err := c.lockOwner()
	if err != nil {
		return core.Transaction{}, err
	}
	c.store.UpsertTransaction(tx)
	c.dispatch(owner, log.OpCreate, log.NewFields().WithTransaction(tx.ID, tx.Category, tx.Amount), func(ctx context.Context) error {
		_, err := c.gateway.InsertTransaction(ctx, owner, tx)
		return err
	})
	c.mu.Unlock()
	c.bus.Notify()
	return tx, nil
}

func (c *Controller) UpdateTransaction(ctx context.Context, id string, patch remote.TransactionPatch) (core.Transaction, error) {
	owner, err := c.lockOwner()
	if err != nil {
		return core.Transaction{}, err
	}
	cur, ok := c.store.Transaction(id)
	if !ok {
		c.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	next := patch.Apply(cur)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return core.Transaction{}, err
	}
	c.store.UpsertTransaction(next)
	c.dispatch(owner, log.OpUpdate, log.NewFields().WithTransaction(id, next.Category, next.Amount), func(ctx context.Context) error {
		return c.gateway.UpdateTransaction(ctx, owner, id, patch)
	})
	c.mu.Unlock()
	c.bus.Notify()
	return next, nil
}

// DeleteTransaction removes a transaction. Deleting either half of a cash
// withdrawal also removes its counterpart, found by matching amount, date
// and opposite type and account. When several rows match, the first one in
// cache order is taken. Both ids go out in a single remote call.
func (c *Controller) DeleteTransaction(ctx context.Context, id string) ([]string, error) {
	owner, err := c.lockOwner()
	if err != nil {
		return nil, err
	}
	snapshot := c.store.Transactions()
	var target *core.Transaction
	for i := range snapshot {
		if snapshot[i].ID == id {
			target = &snapshot[i]
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	removed := []string{id}
	if target.IsWithdrawal() {
		for _, other := range snapshot {
			if target.PairsWith(other) {
				removed = append(removed, other.ID)
				break
			}
		}
	}
	c.store.RemoveTransactions(removed...)
	fields := log.NewFields().WithTransaction(id, target.Category, target.Amount)
	c.dispatch(owner, log.OpDelete, fields, func(ctx context.Context) error {
		if len(removed) > 1 {
			return c.gateway.DeleteTransactions(ctx, owner, removed)
		}
		return c.gateway.DeleteTransaction(ctx, owner, id)
	})
	c.mu.Unlock()
	c.bus.Notify()
	return removed, nil
}

// WithdrawCash records moving amount from the bank account to cash as two
// rows: a bank expense and a cash income. An empty date means today.
func (c *Controller) WithdrawCash(ctx context.Context, amount int64, date string) ([]core.Transaction, error) {
	if amount <= 0 || amount > core.MaxAmount {
		return nil, core.ErrInvalidAmount
	}
	if date == "" {
		date = c.Today().String()
	}
	if _, err := core.ParseDate(date); err != nil {
		return nil, err
	}

	now := c.config.Now().UTC()
	half := func(typ core.TxType, account core.Account) core.Transaction {
		return core.Transaction{
			ID:           ids.New(),
			Type:         typ,
			Amount:       amount,
			Date:         date,
			Account:      account,
			Category:     core.WithdrawalCategory,
			Description:  core.WithdrawalDescription,
			Counterparty: core.WithdrawalCounterparty,
			CreatedAt:    now,
		}
	}
	pair := []core.Transaction{half(core.Expense, core.Bank), half(core.Income, core.Cash)}

	owner, err := c.lockOwner()
	if err != nil {
		return nil, err
	}
	for _, tx := range pair {
		c.store.UpsertTransaction(tx)
	}
	fields := log.NewFields().WithTransaction(pair[0].ID, core.WithdrawalCategory, amount)
	c.dispatch(owner, log.OpWithdraw, fields, func(ctx context.Context) error {
		for _, tx := range pair {
			if _, err := c.gateway.InsertTransaction(ctx, owner, tx); err != nil {
				return fmt.Errorf("insert %s half: %w", tx.Account, err)
			}
		}
		return nil
	})
	c.mu.Unlock()
	c.bus.Notify()
	return pair, nil
}
