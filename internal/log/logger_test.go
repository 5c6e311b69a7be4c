package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestJSONLoggerCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentSync, Output: &buf})

	logger.LogError(context.Background(), "remote write failed", errors.New("boom"), OpCreate,
		NewFields().WithOwner("u1").WithTransaction("t1", "Makanan", 5000))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentSync, entry[FieldComponent])
	assert.Equal(t, "boom", entry[FieldError])
	assert.Equal(t, OpCreate, entry[FieldOperation])
	assert.Equal(t, "u1", entry[FieldOwner])
	assert.Equal(t, float64(5000), entry[FieldAmount])
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())

	mine := Discard()
	assert.Same(t, mine, FromContext(WithContext(context.Background(), mine)))
}
