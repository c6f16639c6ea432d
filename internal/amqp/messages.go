package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage notifies that a ledger's entry collection changed.
// It carries only the ledger ID and the new sequence number; consumers
// fetch the full snapshot from the store, never a delta.
type LedgerChangedMessage struct {
	LedgerID  string    `json:"ledgerId"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(ledgerID string, seq uint64) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		LedgerID:  ledgerID,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
