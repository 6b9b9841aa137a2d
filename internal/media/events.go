package media

import (
	"context"
	"encoding/json"
	"fmt"

	pubsubv2 "cloud.google.com/go/pubsub/v2"

	"github.com/emotrace/emotrace-backend/pkg/enums"
)

// DeletionEvent is published when a media row is removed so the cleanup
// worker can destroy the stored bytes asynchronously.
type DeletionEvent struct {
	MediaID  string          `json:"media_id"`
	PublicID string          `json:"public_id"`
	Kind     enums.MediaKind `json:"kind"`
}

// EventPublisher publishes media deletion events to Pub/Sub.
type EventPublisher struct {
	pub *pubsubv2.Publisher
}

// NewEventPublisher wraps a Pub/Sub publisher. A nil publisher yields a
// nil EventPublisher, which the service treats as pubsub-disabled.
func NewEventPublisher(pub *pubsubv2.Publisher) *EventPublisher {
	if pub == nil {
		return nil
	}
	return &EventPublisher{pub: pub}
}

// PublishDeletion publishes the event and waits for the server ack.
func (p *EventPublisher) PublishDeletion(ctx context.Context, event DeletionEvent) error {
	if p == nil || p.pub == nil {
		return fmt.Errorf("deletion publisher not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding deletion event: %w", err)
	}
	result := p.pub.Publish(ctx, &pubsubv2.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing deletion event: %w", err)
	}
	return nil
}
