// Package events publishes and dispatches media processing events over
// Kafka. Uploads and processing are decoupled: the upload flow publishes a
// typed event keyed by asset id, and the dispatcher consumes it and runs the
// matching transform stage.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topic names, one per workload so retention and scaling are independent.
const (
	TopicImageProcessing     = "media.processing"
	TopicVideoTranscoding    = "video.transcoding"
	TopicThumbnailGeneration = "thumbnail.generation"
)

// TopicForType maps an event type to its Kafka topic.
func TopicForType(t mediapipeline.EventType) string {
	switch t {
	case mediapipeline.EventTypeVideo:
		return TopicVideoTranscoding
	case mediapipeline.EventTypeThumbnail:
		return TopicThumbnailGeneration
	default:
		return TopicImageProcessing
	}
}

// messageWriter is the slice of kafka.Writer the publisher needs; tests
// substitute a stub.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends processing events, one writer per topic.
type Publisher struct {
	writers map[string]messageWriter
	logger  *zap.Logger
	metrics *metrics.Metrics

	asyncTimeout time.Duration
}

// PublisherConfig options for the event publisher.
type PublisherConfig struct {
	Brokers []string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewPublisher creates a publisher with one Kafka writer per topic.
func NewPublisher(cfg PublisherConfig) *Publisher {
	writers := make(map[string]messageWriter)
	for _, topic := range []string{TopicImageProcessing, TopicVideoTranscoding, TopicThumbnailGeneration} {
		writers[topic] = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	return newPublisher(writers, cfg.Logger, cfg.Metrics)
}

func newPublisher(writers map[string]messageWriter, logger *zap.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Publisher{
		writers:      writers,
		logger:       logger,
		metrics:      m,
		asyncTimeout: 30 * time.Second,
	}
}

// Publish sends a processing event to the topic for its type, keyed by asset
// id, and waits for the broker's acknowledgement.
func (p *Publisher) Publish(ctx context.Context, event mediapipeline.ProcessingEvent) error {
	topic := TopicForType(event.Type)

	payload, err := json.Marshal(event)
	if err != nil {
		p.metrics.PublishTotal.WithLabelValues(topic, "error").Inc()
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.AssetID.String()),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writers[topic].WriteMessages(ctx, msg); err != nil {
		p.metrics.PublishTotal.WithLabelValues(topic, "error").Inc()
		return err
	}

	p.metrics.PublishTotal.WithLabelValues(topic, "ok").Inc()
	p.logger.Info("published processing event",
		zap.String("topic", topic),
		zap.String("asset_id", event.AssetID.String()))
	return nil
}

// PublishAsync detaches the publish from the caller. A failed publish is
// logged and dropped, never retried; this can leave an asset permanently
// PENDING, which operators detect through a staleness query.
func (p *Publisher) PublishAsync(event mediapipeline.ProcessingEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.asyncTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.logger.Error("failed to publish processing event",
				zap.String("topic", TopicForType(event.Type)),
				zap.String("asset_id", event.AssetID.String()),
				zap.Error(err))
		}
	}()
}

// PublishImage publishes an image processing event.
func (p *Publisher) PublishImage(ctx context.Context, assetID, collectionID uuid.UUID, mimeType, originalURL string) error {
	return p.Publish(ctx, mediapipeline.ProcessingEvent{
		AssetID:      assetID,
		CollectionID: collectionID,
		MimeType:     mimeType,
		OriginalURL:  originalURL,
		Type:         mediapipeline.EventTypeImage,
	})
}

// PublishVideo publishes a video transcoding event.
func (p *Publisher) PublishVideo(ctx context.Context, assetID, collectionID uuid.UUID, mimeType, originalURL string) error {
	return p.Publish(ctx, mediapipeline.ProcessingEvent{
		AssetID:      assetID,
		CollectionID: collectionID,
		MimeType:     mimeType,
		OriginalURL:  originalURL,
		Type:         mediapipeline.EventTypeVideo,
	})
}

// PublishThumbnail publishes a thumbnail generation event.
func (p *Publisher) PublishThumbnail(ctx context.Context, assetID, collectionID uuid.UUID, originalURL string) error {
	return p.Publish(ctx, mediapipeline.ProcessingEvent{
		AssetID:      assetID,
		CollectionID: collectionID,
		OriginalURL:  originalURL,
		Type:         mediapipeline.EventTypeThumbnail,
	})
}

// Close closes all topic writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
