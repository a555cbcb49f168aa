package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	written  chan struct{}
}

func newStubWriter() *stubWriter {
	return &stubWriter{written: make(chan struct{}, 16)}
}

func (w *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	for range msgs {
		w.written <- struct{}{}
	}
	return nil
}

func (w *stubWriter) Close() error { return nil }

func (w *stubWriter) all() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func stubPublisher() (*Publisher, map[string]*stubWriter) {
	stubs := map[string]*stubWriter{
		TopicImageProcessing:     newStubWriter(),
		TopicVideoTranscoding:    newStubWriter(),
		TopicThumbnailGeneration: newStubWriter(),
	}
	writers := make(map[string]messageWriter, len(stubs))
	for topic, w := range stubs {
		writers[topic] = w
	}
	return newPublisher(writers, nil, nil), stubs
}

func TestTopicForType(t *testing.T) {
	assert.Equal(t, TopicImageProcessing, TopicForType(mediapipeline.EventTypeImage))
	assert.Equal(t, TopicVideoTranscoding, TopicForType(mediapipeline.EventTypeVideo))
	assert.Equal(t, TopicThumbnailGeneration, TopicForType(mediapipeline.EventTypeThumbnail))
}

func TestPublishRoutesByTypeAndKeysByAssetID(t *testing.T) {
	p, stubs := stubPublisher()
	assetID := uuid.New()
	collectionID := uuid.New()

	err := p.PublishVideo(context.Background(), assetID, collectionID, "video/mp4", "https://cdn/x.mp4")
	require.NoError(t, err)

	msgs := stubs[TopicVideoTranscoding].all()
	require.Len(t, msgs, 1)
	assert.Empty(t, stubs[TopicImageProcessing].all())

	assert.Equal(t, assetID.String(), string(msgs[0].Key))

	var event mediapipeline.ProcessingEvent
	require.NoError(t, json.Unmarshal(msgs[0].Value, &event))
	assert.Equal(t, assetID, event.AssetID)
	assert.Equal(t, collectionID, event.CollectionID)
	assert.Equal(t, "video/mp4", event.MimeType)
	assert.Equal(t, "https://cdn/x.mp4", event.OriginalURL)
	assert.Equal(t, mediapipeline.EventTypeVideo, event.Type)
}

func TestPublishPayloadFieldNames(t *testing.T) {
	p, stubs := stubPublisher()

	require.NoError(t, p.PublishImage(context.Background(), uuid.New(), uuid.New(), "image/jpeg", "u"))

	msgs := stubs[TopicImageProcessing].all()
	require.Len(t, msgs, 1)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &raw))
	for _, field := range []string{"assetId", "collectionId", "mimeType", "originalUrl", "type"} {
		assert.Contains(t, raw, field)
	}
}

func TestPublishReturnsWriterError(t *testing.T) {
	p, stubs := stubPublisher()
	stubs[TopicImageProcessing].err = errors.New("broker unavailable")

	err := p.PublishImage(context.Background(), uuid.New(), uuid.New(), "image/jpeg", "u")
	assert.Error(t, err)
}

func TestPublishAsyncDeliversInBackground(t *testing.T) {
	p, stubs := stubPublisher()

	p.PublishAsync(mediapipeline.ProcessingEvent{
		AssetID: uuid.New(),
		Type:    mediapipeline.EventTypeThumbnail,
	})

	select {
	case <-stubs[TopicThumbnailGeneration].written:
	case <-time.After(2 * time.Second):
		t.Fatal("async publish never reached the writer")
	}
}

func TestPublishAsyncSwallowsErrors(t *testing.T) {
	p, stubs := stubPublisher()
	stubs[TopicImageProcessing].err = errors.New("broker unavailable")

	// Must not panic or block the caller.
	p.PublishAsync(mediapipeline.ProcessingEvent{
		AssetID: uuid.New(),
		Type:    mediapipeline.EventTypeImage,
	})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, stubs[TopicImageProcessing].all())
}
