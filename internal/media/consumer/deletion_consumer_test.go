package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/enums"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

type fakeDestroyer struct {
	calls    int
	failures int
	err      error
}

func (f *fakeDestroyer) Destroy(_ context.Context, _ string, _ enums.MediaKind) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("transient storage error")
	}
	return f.err
}

func buildConsumer(storage *fakeDestroyer, attempts int) *DeletionConsumer {
	return &DeletionConsumer{
		storage: storage,
		cfg: config.CleanupConfig{
			MaxDeleteAttempts: attempts,
			RetryBackoff:      time.Millisecond,
		},
		logg: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func eventMessage(t *testing.T, event media.DeletionEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &pubsub.Message{ID: "m1", Data: data}
}

func TestProcessDestroysBytes(t *testing.T) {
	storage := &fakeDestroyer{}
	c := buildConsumer(storage, 3)

	msg := eventMessage(t, media.DeletionEvent{
		MediaID:  "7c9f2f6c-0000-0000-0000-000000000000",
		PublicID: "media_uploads/abc",
		Kind:     enums.MediaKindImage,
	})

	assert.True(t, c.process(context.Background(), msg))
	assert.Equal(t, 1, storage.calls)
}

func TestProcessRetriesTransientFailures(t *testing.T) {
	storage := &fakeDestroyer{failures: 2}
	c := buildConsumer(storage, 5)

	msg := eventMessage(t, media.DeletionEvent{
		PublicID: "media_uploads/abc",
		Kind:     enums.MediaKindVideo,
	})

	assert.True(t, c.process(context.Background(), msg))
	assert.Equal(t, 3, storage.calls)
}

func TestProcessNacksAfterExhaustedRetries(t *testing.T) {
	storage := &fakeDestroyer{err: errors.New("still broken")}
	c := buildConsumer(storage, 3)

	msg := eventMessage(t, media.DeletionEvent{
		PublicID: "media_uploads/abc",
		Kind:     enums.MediaKindImage,
	})

	assert.False(t, c.process(context.Background(), msg))
	assert.Equal(t, 3, storage.calls)
}

func TestProcessAcksMalformedMessages(t *testing.T) {
	storage := &fakeDestroyer{}
	c := buildConsumer(storage, 3)

	assert.True(t, c.process(context.Background(), &pubsub.Message{ID: "m1", Data: []byte("not json")}))

	missingID := eventMessage(t, media.DeletionEvent{Kind: enums.MediaKindImage})
	assert.True(t, c.process(context.Background(), missingID))

	badKind := eventMessage(t, media.DeletionEvent{PublicID: "media_uploads/abc", Kind: "gif"})
	assert.True(t, c.process(context.Background(), badKind))

	assert.Equal(t, 0, storage.calls)
}
