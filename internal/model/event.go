package model

import (
	"encoding/json"
	"time"
)

// DomainEvent is the unit of data flowing from the internal bus into the
// distribution hub. The payload is opaque to the core; only routing fields
// (symbol, user_id) are extracted by the bridge.
type DomainEvent struct {
	Topic     Topic           `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an event with the current UTC timestamp.
func NewEvent(topic Topic, payload json.RawMessage) DomainEvent {
	return DomainEvent{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
