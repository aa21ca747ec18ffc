// Package events provides the client diagnostic event log.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a client event
type EventType string

const (
	// EventTypeUnknown is used for diagnostics that fit no other category
	EventTypeUnknown EventType = "unknown"

	// EventTypeDiscovery is used for discovery session diagnostics
	EventTypeDiscovery EventType = "discovery"

	// EventTypeAuthorization is used for authorization flow diagnostics
	EventTypeAuthorization EventType = "authorization"
)

// ClientEvent is a single diagnostic entry
type ClientEvent struct {
	// ID uniquely identifies the event
	ID string `json:"id"`

	// Text is a human readable description
	Text string `json:"text"`

	// Type is the event category
	Type EventType `json:"type"`

	// Payload carries the raw data that caused the event
	Payload map[string]any `json:"payload,omitempty"`

	// Date is when the event was recorded
	Date time.Time `json:"date"`
}

// NewClientEvent creates an event with a fresh ID and the current time
func NewClientEvent(text string, eventType EventType, payload map[string]any) ClientEvent {
	return ClientEvent{
		ID:      uuid.NewString(),
		Text:    text,
		Type:    eventType,
		Payload: payload,
		Date:    time.Now().UTC(),
	}
}
