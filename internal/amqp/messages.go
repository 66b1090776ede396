package amqp

import (
	"encoding/json"
	"time"
)

// Operations a ledger event can describe.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LedgerEventMessage announces that a transaction changed account balances.
// It carries only identifiers; consumers fetch current state from the
// database so a stale message can never overwrite newer data.
type LedgerEventMessage struct {
	TransactionID int64     `json:"transaction_id"`
	Op            string    `json:"op"`
	AccountIDs    []int64   `json:"account_ids"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(transactionID int64, op string, accountIDs []int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		TransactionID: transactionID,
		Op:            op,
		AccountIDs:    accountIDs,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
