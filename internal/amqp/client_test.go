package amqp

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/core"
	"sakinah/internal/remote"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestChangeMessageJSON(t *testing.T) {
	ev := remote.Event{
		Table:       remote.TableTransactions,
		Kind:        remote.Insert,
		Transaction: core.Transaction{ID: "t1", Type: core.Income, Amount: 50000, Date: "2025-09-01", Account: core.Cash, Category: "Gaji"},
	}
	body, err := NewChangeMessage("u1", ev).ToJSON()
	require.NoError(t, err)

	msg, err := ChangeMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "u1", msg.Owner)
	assert.Equal(t, ev, msg.Event)
}

func TestChangeMessageRejectsBadBodies(t *testing.T) {
	_, err := ChangeMessageFromJSON([]byte(`{`))
	assert.Error(t, err)

	_, err = ChangeMessageFromJSON([]byte(`{"owner":"","event":{"table":"transactions"}}`))
	assert.ErrorIs(t, err, remote.ErrNoOwner)

	_, err = ChangeMessageFromJSON([]byte(`{"owner":"u1","event":{"table":"budgets"}}`))
	assert.ErrorIs(t, err, remote.ErrUnknownTable)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "u1.transactions", RoutingKey("u1", remote.TableTransactions))
}

func TestBrokerRoundTrip(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	ctx := context.Background()
	b, err := NewBroker(ctx, url, "sakinah.test", nil)
	require.NoError(t, err)
	defer b.Close()

	got := make(chan remote.Event, 1)
	sub, err := b.Subscribe(ctx, "u1", remote.TableCategories, func(ev remote.Event) { got <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev := remote.Event{Table: remote.TableCategories, Kind: remote.Insert, Category: core.Category{ID: "c1", Name: "Gaji", Type: core.Income}}
	require.NoError(t, b.Publish(ctx, "u2", ev))
	require.NoError(t, b.Publish(ctx, "u1", ev))

	select {
	case received := <-got:
		assert.Equal(t, ev, received)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
}
