package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"sakinah/internal/remote"
)

// ChangeMessage carries one committed row change between processes.
type ChangeMessage struct {
	Owner     string       `json:"owner"`
	Event     remote.Event `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewChangeMessage(owner string, ev remote.Event) *ChangeMessage {
	return &ChangeMessage{
		Owner:     owner,
		Event:     ev,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and sanity-checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Owner == "" {
		return nil, remote.ErrNoOwner
	}
	if !remote.ValidTable(msg.Event.Table) {
		return nil, fmt.Errorf("%w: %q", remote.ErrUnknownTable, msg.Event.Table)
	}
	return &msg, nil
}

// RoutingKey is "<owner>.<table>"; subscriptions bind to the exact key.
func RoutingKey(owner string, table remote.Table) string {
	return owner + "." + string(table)
}
