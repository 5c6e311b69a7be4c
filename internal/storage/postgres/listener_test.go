package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakinah/internal/core"
	"sakinah/internal/remote"
)

func TestDecodeNotification(t *testing.T) {
	payload := `{"table":"transactions","kind":"insert","owner":"u1","row":{"id":"t1","user_id":"u1","type":"expense","amount":25000,"date":"2025-09-01","account":"bank","category":"Makanan","description":"","counterparty":"","created_at":"2025-09-01T08:00:00.123456+00:00"}}`

	owner, ev, err := decodeNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)
	assert.Equal(t, remote.TableTransactions, ev.Table)
	assert.Equal(t, remote.Insert, ev.Kind)
	assert.Equal(t, core.Bank, ev.Transaction.Account)
	assert.Equal(t, int64(25000), ev.Transaction.Amount)
	assert.Equal(t, 2025, ev.Transaction.CreatedAt.Year())
}

func TestDecodeCategoryDelete(t *testing.T) {
	owner, ev, err := decodeNotification(`{"table":"categories","kind":"delete","owner":"u9","row":{"id":"c1","user_id":"u9","name":"Gaji","type":"income","created_at":"2025-09-01T08:00:00+00:00"}}`)
	require.NoError(t, err)
	assert.Equal(t, "u9", owner)
	assert.Equal(t, remote.Delete, ev.Kind)
	assert.Equal(t, "c1", ev.RowID())
}

func TestDecodeNotificationRejects(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{"table":"accounts","kind":"insert","owner":"u1","row":{}}`,
		`{"table":"transactions","kind":"truncate","owner":"u1","row":{}}`,
	} {
		_, _, err := decodeNotification(payload)
		assert.Error(t, err, payload)
	}
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db", migrateURL("postgres://u:p@localhost:5432/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}
