package amqp

import (
	"encoding/json"
	"time"
)

// ImportCompletedMessage announces that a CSV import batch was persisted.
// It carries only the import id and record count; the worker fetches the
// batch from storage.
type ImportCompletedMessage struct {
	ImportID    string    `json:"importId"`
	RecordCount int       `json:"recordCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewImportCompletedMessage creates a message for a persisted import batch
func NewImportCompletedMessage(importID string, recordCount int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		ImportID:    importID,
		RecordCount: recordCount,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportCompletedMessageFromJSON creates a message from JSON bytes
func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
