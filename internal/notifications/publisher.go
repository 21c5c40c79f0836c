package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"circle/internal/middleware"
)

// Event is the envelope every realtime message is wrapped in.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Encode marshals an event envelope for the wire.
func Encode(eventType string, payload interface{}) (string, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return string(b), nil
}

// Publisher routes user events to WebSocket clients. With Redis available the
// event goes through pub/sub and reaches this instance's Hub via StartWiring;
// without it the event is delivered to the local Hub only.
type Publisher struct {
	hub      *Hub
	notifier *Notifier
}

// NewPublisher returns a Publisher over hub and notifier. Either may be nil.
func NewPublisher(hub *Hub, notifier *Notifier) *Publisher {
	return &Publisher{hub: hub, notifier: notifier}
}

// PublishUser delivers an already encoded message to every connection of userID.
func (p *Publisher) PublishUser(ctx context.Context, userID uint, message string) error {
	if p == nil {
		return nil
	}
	if p.notifier.Enabled() {
		return p.notifier.PublishUser(ctx, userID, message)
	}
	if p.hub != nil {
		p.hub.Broadcast(userID, message)
	}
	return nil
}

// PublishEvent encodes and delivers one event. Failures are logged, never returned.
func (p *Publisher) PublishEvent(ctx context.Context, userID uint, eventType string, payload interface{}) {
	message, err := Encode(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode realtime event", "event", eventType, "error", err)
		return
	}
	if err := p.PublishUser(ctx, userID, message); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			"event", eventType, "user_id", userID, "error", err)
	}
}
