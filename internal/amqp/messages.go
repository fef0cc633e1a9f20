package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op names the kind of change applied to a transaction.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

func (o Op) IsValid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// TransactionChangeMessage announces that a transaction was created, updated
// or deleted. Consumers reload the transaction list themselves; the message
// carries only the ID.
type TransactionChangeMessage struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionChangeMessage creates a change message stamped with the
// current time.
func NewTransactionChangeMessage(id string, op Op) *TransactionChangeMessage {
	return &TransactionChangeMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangeMessageFromJSON decodes a message and rejects unknown
// operations.
func TransactionChangeMessageFromJSON(data []byte) (*TransactionChangeMessage, error) {
	var msg TransactionChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Op.IsValid() {
		return nil, fmt.Errorf("unknown change operation %q", msg.Op)
	}
	return &msg, nil
}
