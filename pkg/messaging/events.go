package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every bus message travels in. Type is one of the
// constants in shared/events; Data is the type-specific payload.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Metadata  EventMetadata   `json:"metadata"`
}

// EventMetadata carries tracing context across services.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id"`
	Source        string `json:"source"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(eventType string, walletID uuid.UUID, data interface{}, metadata EventMetadata) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		WalletID:  walletID,
		Timestamp: time.Now(),
		Data:      dataBytes,
		Metadata:  metadata,
	}, nil
}

// ParseEventData parses an envelope's payload into the specified type.
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
