package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Stage is a transform stage the dispatcher can route an asset to. Both
// image.Processor and video.Processor satisfy it.
type Stage interface {
	Process(ctx context.Context, asset *mediapipeline.Asset) (*mediapipeline.Asset, error)
}

// Dispatcher consumes the three processing topics, claims assets and runs the
// matching transform stage. Stage failures are persisted as FAILED assets and
// never crash the consumer loop.
type Dispatcher struct {
	assets mediapipeline.AssetStore
	images Stage
	videos Stage

	readers []*kafka.Reader
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// DispatcherConfig options for the event dispatcher.
type DispatcherConfig struct {
	Brokers []string
	GroupID string // consumer group id (default "media-pipeline")

	Assets mediapipeline.AssetStore
	Images Stage
	Videos Stage

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher with one reader per topic.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Assets == nil {
		return nil, errors.New("asset store is required")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "media-pipeline"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}

	d := &Dispatcher{
		assets:  cfg.Assets,
		images:  cfg.Images,
		videos:  cfg.Videos,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	for _, topic := range []string{TopicImageProcessing, TopicVideoTranscoding, TopicThumbnailGeneration} {
		d.readers = append(d.readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   topic,
			GroupID: cfg.GroupID,
		}))
	}
	return d, nil
}

// Run consumes all three topics until the context is cancelled. Messages on
// the same topic are handled sequentially, preserving per-key ordering within
// a partition.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, reader := range d.readers {
		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			d.consume(ctx, r)
		}(reader)
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) consume(ctx context.Context, r *kafka.Reader) {
	topic := r.Config().Topic
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("kafka read failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var event mediapipeline.ProcessingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			d.logger.Error("dropping malformed processing event",
				zap.String("topic", topic), zap.Error(err))
			continue
		}

		if err := d.HandleEvent(ctx, event); err != nil {
			d.logger.Error("event handling failed",
				zap.String("topic", topic),
				zap.String("asset_id", event.AssetID.String()),
				zap.Error(err))
		}
	}
}

// HandleEvent resolves the asset for an event, claims it and runs the
// matching transform stage. Stage errors are reflected in the persisted asset
// state, not returned; the returned error covers lookup and persistence
// failures only.
func (d *Dispatcher) HandleEvent(ctx context.Context, event mediapipeline.ProcessingEvent) error {
	eventType := string(event.Type)

	asset, err := d.assets.Get(ctx, event.AssetID)
	if err != nil {
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}

	stage := d.stageFor(event.Type, asset)
	if stage == nil {
		// Likely a misrouted publish; surfaced in logs rather than silently
		// swallowed so operators can spot it.
		d.logger.Warn("event type does not match asset MIME type, skipping",
			zap.String("asset_id", asset.ID.String()),
			zap.String("event_type", eventType),
			zap.String("mime_type", asset.MimeType))
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "mismatched").Inc()
		return nil
	}

	claimed, err := d.assets.ClaimProcessing(ctx, asset.ID)
	if err != nil {
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}
	if !claimed {
		// Another handler holds the asset, or it already finished. Duplicate
		// deliveries land here.
		d.logger.Info("asset not claimable, skipping",
			zap.String("asset_id", asset.ID.String()),
			zap.String("status", string(asset.ProcessingStatus)))
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "skipped").Inc()
		return nil
	}
	asset.ProcessingStatus = mediapipeline.StatusProcessing

	processed, stageErr := stage.Process(ctx, asset)
	if saveErr := d.assets.Save(ctx, processed); saveErr != nil {
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "error").Inc()
		return saveErr
	}

	if stageErr != nil {
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "failed").Inc()
	} else {
		d.metrics.ProcessingTotal.WithLabelValues(eventType, "completed").Inc()
	}
	return nil
}

// stageFor picks the transform stage for an event, or nil when the asset's
// MIME type does not match the event. Thumbnail events route by MIME type.
func (d *Dispatcher) stageFor(eventType mediapipeline.EventType, asset *mediapipeline.Asset) Stage {
	switch eventType {
	case mediapipeline.EventTypeImage:
		if asset.IsImage() {
			return d.images
		}
	case mediapipeline.EventTypeVideo:
		if asset.IsVideo() {
			return d.videos
		}
	case mediapipeline.EventTypeThumbnail:
		if asset.IsImage() {
			return d.images
		}
		if asset.IsVideo() {
			return d.videos
		}
	}
	return nil
}

// Close closes all topic readers.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, r := range d.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
