// Package postgres is the PostgreSQL remote store. Change events come from
// row triggers that pg_notify a JSON payload; one listening connection
// decodes them and fans them out through a remote.Hub.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sakinah/internal/core"
	"sakinah/internal/ids"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

// Channel is the NOTIFY channel written by the change triggers.
const Channel = "sakinah_changes"

type Repository struct {
	pool   *pgxpool.Pool
	hub    *remote.Hub
	logger *log.Logger
	url    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ remote.Gateway = (*Repository)(nil)

// New migrates the database, opens a pool and starts the change listener.
func New(ctx context.Context, databaseURL string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	r := &Repository{
		pool:   pool,
		hub:    remote.NewHub(),
		logger: logger.WithComponent(log.ComponentPostgres),
		url:    databaseURL,
		cancel: cancel,
	}
	r.wg.Add(1)
	go r.listen(listenCtx)
	return r, nil
}

func (r *Repository) Close() error {
	r.cancel()
	r.wg.Wait()
	r.pool.Close()
	return nil
}

func (r *Repository) Subscribe(ctx context.Context, owner string, table remote.Table, h remote.Handler) (remote.Subscription, error) {
	return r.hub.Subscribe(ctx, owner, table, h)
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, type FROM categories WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TxType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) InsertCategory(ctx context.Context, owner string, c core.Category) (core.Category, error) {
	if owner == "" {
		return core.Category{}, remote.ErrNoOwner
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, user_id, name, type) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		c.ID, owner, c.Name, string(c.Type))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Category{}, remote.ErrConflict
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, owner, id string, patch remote.CategoryPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if err := r.update(ctx, "categories", owner, id, patch.Assignments()); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, owner, id string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, owner); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// ListTransactions returns the owner's rows, most recently created first.
func (r *Repository) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, amount, date, account, category, description, counterparty, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t            core.Transaction
			typ, account string
		)
		if err := rows.Scan(&t.ID, &typ, &t.Amount, &t.Date, &account, &t.Category, &t.Description, &t.Counterparty, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxType(typ)
		t.Account = core.Account(account)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) InsertTransaction(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error) {
	if owner == "" {
		return core.Transaction{}, remote.ErrNoOwner
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, date, account, category, description, counterparty, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`,
		t.ID, owner, string(t.Type), t.Amount, t.Date, string(t.Account), t.Category, t.Description, t.Counterparty, t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Transaction{}, remote.ErrConflict
	}
	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, owner, id string, patch remote.TransactionPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if err := r.update(ctx, "transactions", owner, id, patch.Assignments()); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, owner, id string) error {
	return r.DeleteTransactions(ctx, owner, []string{id})
}

// DeleteTransactions removes every listed row with a single statement.
func (r *Repository) DeleteTransactions(ctx context.Context, owner string, idList []string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if len(idList) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM transactions WHERE user_id = $1 AND id = ANY($2)`, owner, idList); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	return nil
}

// update applies a partial update; table is always a package constant.
func (r *Repository) update(ctx context.Context, table, owner, id string, set []remote.Assignment) error {
	if len(set) == 0 {
		var exists int
		err := r.pool.QueryRow(ctx,
			`SELECT 1 FROM `+table+` WHERE id = $1 AND user_id = $2`, id, owner).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return remote.ErrNotFound
		}
		return err
	}

	cols := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+2)
	for i, a := range set {
		cols = append(cols, a.Column+" = $"+strconv.Itoa(i+1))
		args = append(args, a.Value)
	}
	args = append(args, id, owner)
	n := len(set)

	tag, err := r.pool.Exec(ctx,
		`UPDATE `+table+` SET `+strings.Join(cols, ", ")+
			` WHERE id = $`+strconv.Itoa(n+1)+` AND user_id = $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return remote.ErrNotFound
	}
	return nil
}
