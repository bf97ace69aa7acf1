// Package outbox implements the transactional outbox: lifecycle events are
// appended in the same transaction as the state change they describe and a
// worker publishes them to Kafka afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one pending event in the outbox table.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // e.g. "credential"
	AggregateID   string
	EventType     string // e.g. "credential.issued"
	Payload       []byte // JSON
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil until published
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry builds an entry with a fresh id.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

// NewJSONEntry marshals payload and builds an entry from it.
func NewJSONEntry(aggregateType, aggregateID, eventType string, payload any, now time.Time) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return NewEntry(aggregateType, aggregateID, eventType, raw, now), nil
}
