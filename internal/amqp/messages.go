package amqp

import (
	"encoding/json"
	"time"
)

// DatasetRefreshMessage asks a worker to reload a cost data source and
// persist a fresh snapshot. It names the source only; the worker resolves
// the loader from its own configuration.
type DatasetRefreshMessage struct {
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewDatasetRefreshMessage creates a refresh request for the named source.
func NewDatasetRefreshMessage(source string) *DatasetRefreshMessage {
	return &DatasetRefreshMessage{
		Source:      source,
		RequestedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *DatasetRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetRefreshMessageFromJSON creates a message from JSON bytes.
func DatasetRefreshMessageFromJSON(data []byte) (*DatasetRefreshMessage, error) {
	var msg DatasetRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
