package amqp

import (
	"encoding/json"
	"time"
)

// ViolationSyncMessage asks the worker to push one stored violation to the
// upstream sheet. It carries only the ID and version; the worker loads the
// row from the database.
type ViolationSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewViolationSyncMessage creates a new sync message with just ID and version
func NewViolationSyncMessage(id, version int64) *ViolationSyncMessage {
	return &ViolationSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ViolationSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ViolationSyncMessageFromJSON creates a message from JSON bytes
func ViolationSyncMessageFromJSON(data []byte) (*ViolationSyncMessage, error) {
	var msg ViolationSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
