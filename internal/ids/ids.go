// Package ids generates identifiers for entities created locally before the
// remote store has seen them.
package ids

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// New returns a random RFC 4122 v4 UUID. When the system random source is
// unavailable it falls back to a weaker "id-" prefixed token.
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallback()
	}
	return id.String()
}

func fallback() string {
	suffix := strconv.FormatInt(time.Now().UnixMilli(), 36)
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return "id-" + strconv.FormatInt(time.Now().UnixNano(), 36) + suffix
	}
	return "id-" + strconv.FormatInt(n.Int64(), 36) + suffix
}
