package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage is the lightweight event published after a
// transaction write. It carries only identifiers; the worker fetches the
// full document from the store, so a stale or replayed message is harmless.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Actions carried by sync messages.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

func NewTransactionSyncMessage(id, ownerID, action string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		OwnerID:   ownerID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON creates a message from JSON bytes
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
