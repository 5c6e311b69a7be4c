// Package storage is the SQLite remote store. Rows are scoped by user_id and
// every committed write is published on a remote.Broker so that other
// processes sharing the broker converge.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sakinah/internal/core"
	"sakinah/internal/ids"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

type SQLiteRepository struct {
	db     *sql.DB
	broker remote.Broker
	logger *log.Logger
	now    func() time.Time
}

var _ remote.Gateway = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, migrates it and publishes changes on
// broker. A nil broker means an in-process hub.
func NewSQLiteRepository(dbPath string, broker remote.Broker, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if broker == nil {
		broker = remote.NewHub()
	}
	if logger == nil {
		logger = log.Discard()
	}

	return &SQLiteRepository{
		db:     db,
		broker: broker,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, owner string, table remote.Table, h remote.Handler) (remote.Subscription, error) {
	return r.broker.Subscribe(ctx, owner, table, h)
}

func (r *SQLiteRepository) publish(ctx context.Context, owner string, ev remote.Event) {
	if err := r.broker.Publish(ctx, owner, ev); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish change",
			log.FieldOwner, owner,
			log.FieldTable, string(ev.Table),
			log.FieldEventKind, string(ev.Kind),
			"error", err)
	}
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type FROM categories WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, owner string, c core.Category) (core.Category, error) {
	if owner == "" {
		return core.Category{}, remote.ErrNoOwner
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, type, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, owner, c.Name, string(c.Type), r.now().UnixMilli())
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, remote.ErrConflict
	}

	r.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Insert, Category: c})
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, owner, id string, patch remote.CategoryPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if err := r.update(ctx, "categories", owner, id, patch.Assignments()); err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type FROM categories WHERE id = ? AND user_id = ?`, id, owner).
		Scan(&c.ID, &c.Name, &c.Type)
	if err != nil {
		return fmt.Errorf("reload category: %w", err)
	}
	r.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Update, Category: c})
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, owner, id string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.publish(ctx, owner, remote.Event{Table: remote.TableCategories, Kind: remote.Delete, Category: core.Category{ID: id}})
	}
	return nil
}

const transactionColumns = `id, type, amount, date, account, category, description, counterparty, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		createdAt int64
	)
	if err := s.Scan(&t.ID, &t.Type, &t.Amount, &t.Date, &t.Account, &t.Category, &t.Description, &t.Counterparty, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	return t, nil
}

// ListTransactions returns the owner's rows, most recently created first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, owner string, t core.Transaction) (core.Transaction, error) {
	if owner == "" {
		return core.Transaction{}, remote.ErrNoOwner
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, string(t.Type), t.Amount, t.Date, string(t.Account), t.Category, t.Description, t.Counterparty,
		t.CreatedAt.UnixMilli(), owner)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, remote.ErrConflict
	}

	r.logger.DebugContext(ctx, "Transaction stored",
		log.FieldOwner, owner,
		log.FieldTransactionID, t.ID,
		log.FieldAmount, t.Amount)
	r.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Insert, Transaction: t})
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, owner, id string, patch remote.TransactionPatch) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if err := r.update(ctx, "transactions", owner, id, patch.Assignments()); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, owner)
	t, err := scanTransaction(row)
	if err != nil {
		return fmt.Errorf("reload transaction: %w", err)
	}
	r.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Update, Transaction: t})
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) error {
	return r.DeleteTransactions(ctx, owner, []string{id})
}

// DeleteTransactions removes the listed rows in one transaction and
// publishes a delete event for each row that existed.
func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, owner string, idList []string) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	if len(idList) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(idList)), ",")
	args := make([]any, 0, len(idList)+1)
	args = append(args, owner)
	for _, id := range idList {
		args = append(args, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM transactions WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("select doomed transactions: %w", err)
	}
	var gone []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan id: %w", err)
		}
		gone = append(gone, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("select doomed transactions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	for _, id := range gone {
		r.publish(ctx, owner, remote.Event{Table: remote.TableTransactions, Kind: remote.Delete, Transaction: core.Transaction{ID: id}})
	}
	return nil
}

// update applies a partial update; table is always a package constant.
func (r *SQLiteRepository) update(ctx context.Context, table, owner, id string, set []remote.Assignment) error {
	if len(set) == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM `+table+` WHERE id = ? AND user_id = ?`, id, owner).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return remote.ErrNotFound
		}
		return err
	}

	cols := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+2)
	for _, a := range set {
		cols = append(cols, a.Column+" = ?")
		args = append(args, a.Value)
	}
	args = append(args, id, owner)

	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET `+strings.Join(cols, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return remote.ErrNotFound
	}
	return nil
}
