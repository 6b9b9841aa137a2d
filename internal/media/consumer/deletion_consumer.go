package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/sethvargo/go-retry"

	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/enums"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

type storageDestroyer interface {
	Destroy(ctx context.Context, publicID string, kind enums.MediaKind) error
}

// DeletionConsumer destroys stored bytes for media rows that were
// deleted through the API. Messages carry a media.DeletionEvent.
type DeletionConsumer struct {
	storage      storageDestroyer
	subscription *pubsub.Subscriber
	cfg          config.CleanupConfig
	logg         *logger.Logger
}

// NewDeletionConsumer constructs a consumer bound to the subscription.
func NewDeletionConsumer(storage storageDestroyer, subscription *pubsub.Subscriber, cfg config.CleanupConfig, logg *logger.Logger) (*DeletionConsumer, error) {
	if storage == nil {
		return nil, errors.New("storage client is required")
	}
	if subscription == nil {
		return nil, errors.New("media deletion subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeletionConsumer{
		storage:      storage,
		subscription: subscription,
		cfg:          cfg,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the
// subscription errors.
func (c *DeletionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed
// messages are acked so they do not poison the subscription; transient
// storage failures are nacked for redelivery.
func (c *DeletionConsumer) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var event media.DeletionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to unmarshal deletion event", err)
		return true
	}

	if strings.TrimSpace(event.PublicID) == "" {
		c.logg.Error(logCtx, "deletion event missing public id", errors.New("empty public_id"))
		return true
	}

	kind, err := enums.ParseMediaKind(string(event.Kind))
	if err != nil {
		c.logg.Error(logCtx, "deletion event has invalid media kind", err)
		return true
	}

	logCtx = c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"media_id":   event.MediaID,
		"public_id":  event.PublicID,
	})

	if err := c.destroyWithRetry(logCtx, event.PublicID, kind); err != nil {
		c.logg.Error(logCtx, "storage destroy exhausted retries", err)
		return false
	}

	c.logg.Info(logCtx, "stored bytes destroyed")
	return true
}

func (c *DeletionConsumer) destroyWithRetry(ctx context.Context, publicID string, kind enums.MediaKind) error {
	attempts := c.cfg.MaxDeleteAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.storage.Destroy(ctx, publicID, kind); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
