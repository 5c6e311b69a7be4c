package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

const reconnectDelay = 2 * time.Second

// notification is the JSON written by sakinah_notify_change().
type notification struct {
	Table string          `json:"table"`
	Kind  string          `json:"kind"`
	Owner string          `json:"owner"`
	Row   json.RawMessage `json:"row"`
}

type rowPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Date         string    `json:"date"`
	Account      string    `json:"account"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Counterparty string    `json:"counterparty"`
	CreatedAt    time.Time `json:"created_at"`
}

// decodeNotification turns a trigger payload into an owner and event.
func decodeNotification(payload string) (string, remote.Event, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", remote.Event{}, fmt.Errorf("decode notification: %w", err)
	}
	var row rowPayload
	if err := json.Unmarshal(n.Row, &row); err != nil {
		return "", remote.Event{}, fmt.Errorf("decode row: %w", err)
	}

	ev := remote.Event{Table: remote.Table(n.Table), Kind: remote.Kind(n.Kind)}
	switch ev.Table {
	case remote.TableCategories:
		ev.Category = core.Category{ID: row.ID, Name: row.Name, Type: core.TxType(row.Type)}
	case remote.TableTransactions:
		ev.Transaction = core.Transaction{
			ID:           row.ID,
			Type:         core.TxType(row.Type),
			Amount:       row.Amount,
			Date:         row.Date,
			Account:      core.Account(row.Account),
			Category:     row.Category,
			Description:  row.Description,
			Counterparty: row.Counterparty,
			CreatedAt:    row.CreatedAt.UTC(),
		}
	default:
		return "", remote.Event{}, fmt.Errorf("%w: %q", remote.ErrUnknownTable, n.Table)
	}
	switch ev.Kind {
	case remote.Insert, remote.Update, remote.Delete:
	default:
		return "", remote.Event{}, fmt.Errorf("unknown change kind %q", n.Kind)
	}
	return n.Owner, ev, nil
}

// listen holds one LISTEN connection open until ctx is cancelled,
// reconnecting after failures.
func (r *Repository) listen(ctx context.Context) {
	defer r.wg.Done()
	for {
		err := r.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("Change listener dropped, reconnecting", "error", err, "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (r *Repository) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, r.url)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	r.logger.Info("Listening for changes", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		owner, ev, err := decodeNotification(n.Payload)
		if err != nil {
			r.logger.Warn("Dropping malformed change notification", "error", err)
			continue
		}
		r.logger.Debug("Change received",
			log.FieldOwner, owner,
			log.FieldTable, string(ev.Table),
			log.FieldEventKind, string(ev.Kind))
		_ = r.hub.Publish(ctx, owner, ev)
	}
}
