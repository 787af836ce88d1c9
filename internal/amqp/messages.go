package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the entry queue.
const (
	EventEntryChanged = "entry.changed"
	EventEntryDeleted = "entry.deleted"
)

// EntryEventMessage is a lightweight notification that an entry changed.
// It carries only the date key and the write stamp; the worker fetches
// the full entry from the store when it needs one.
type EntryEventMessage struct {
	Type         string    `json:"type"`
	Date         string    `json:"date"`
	LastModified int64     `json:"lastModified,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEntryChangedMessage builds the event published after a save or update.
func NewEntryChangedMessage(date string, lastModified int64) *EntryEventMessage {
	return &EntryEventMessage{
		Type:         EventEntryChanged,
		Date:         date,
		LastModified: lastModified,
		Timestamp:    time.Now(),
	}
}

// NewEntryDeletedMessage builds the event published after a delete.
func NewEntryDeletedMessage(date string) *EntryEventMessage {
	return &EntryEventMessage{
		Type:      EventEntryDeleted,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventMessageFromJSON parses a message and checks its event type.
func EntryEventMessageFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventEntryChanged, EventEntryDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
