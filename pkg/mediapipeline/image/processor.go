// Package image derives thumbnail, preview and optimized renditions from
// uploaded raster images and extracts intrinsic metadata.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"go.uber.org/zap"
)

// Config options for the image transform stage.
type Config struct {
	ThumbnailSize int // target long edge for thumbnails (default 300)
	PreviewSize   int // target long edge for previews (default 800)
	OptimizedSize int // target long edge for optimized renditions (default 1920)
	Quality       int // JPEG quality 0-100 (default 85)
}

func (c *Config) applyDefaults() {
	if c.ThumbnailSize == 0 {
		c.ThumbnailSize = 300
	}
	if c.PreviewSize == 0 {
		c.PreviewSize = 800
	}
	if c.OptimizedSize == 0 {
		c.OptimizedSize = 1920
	}
	if c.Quality == 0 {
		c.Quality = 85
	}
}

// Processor is the image transform stage.
type Processor struct {
	gateway *mediapipeline.Gateway
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewProcessor creates an image processor over the given gateway.
func NewProcessor(gateway *mediapipeline.Gateway, cfg Config, logger *zap.Logger) *Processor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Process decodes the asset's original, records intrinsic metadata, derives
// the three renditions and uploads them. Any failure transitions the asset to
// FAILED with the error message; the asset is returned in both cases so the
// caller can persist it.
func (p *Processor) Process(ctx context.Context, asset *mediapipeline.Asset) (*mediapipeline.Asset, error) {
	p.logger.Info("processing image", zap.String("asset_id", asset.ID.String()))

	if err := p.process(ctx, asset); err != nil {
		p.logger.Error("image processing failed",
			zap.String("asset_id", asset.ID.String()),
			zap.Error(err))
		asset.MarkFailed(err.Error())
		return asset, &mediapipeline.ProcessError{AssetID: asset.ID, Stage: "image", Err: err}
	}

	asset.MarkCompleted(p.now())
	p.logger.Info("image processing completed", zap.String("asset_id", asset.ID.String()))
	return asset, nil
}

func (p *Processor) process(ctx context.Context, asset *mediapipeline.Asset) error {
	data, err := p.gateway.Get(ctx, asset.OriginalURL)
	if err != nil {
		return fmt.Errorf("download original: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", mediapipeline.ErrDecodeFailed, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	ratio := AspectRatio(width, height)

	asset.Width = &width
	asset.Height = &height
	asset.AspectRatio = &ratio
	asset.Orientation = Orientation(width, height)

	thumbnailURL, err := p.derive(ctx, asset, img, p.cfg.ThumbnailSize)
	if err != nil {
		return err
	}
	asset.ThumbnailURL = thumbnailURL

	previewURL, err := p.derive(ctx, asset, img, p.cfg.PreviewSize)
	if err != nil {
		return err
	}
	asset.PreviewURL = previewURL

	optimizedURL, err := p.derive(ctx, asset, img, p.cfg.OptimizedSize)
	if err != nil {
		return err
	}
	asset.OptimizedURL = optimizedURL

	return nil
}

// derive scales to the target long edge, encodes as JPEG at the configured
// quality and stores the result under the "processed" purpose.
func (p *Processor) derive(ctx context.Context, asset *mediapipeline.Asset, img image.Image, targetSize int) (string, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	newWidth, newHeight := ScaledDimensions(width, height, targetSize)

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(p.cfg.Quality)); err != nil {
		return "", fmt.Errorf("encode %dpx rendition: %w", targetSize, err)
	}

	filename := fmt.Sprintf("%s_%dx%d.jpg", asset.ID, newWidth, newHeight)
	url, err := p.gateway.Put(ctx, buf.Bytes(),
		asset.CollectionID.String(), mediapipeline.PurposeProcessed, filename, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("upload %dpx rendition: %w", targetSize, err)
	}
	return url, nil
}

// ScaledDimensions computes target dimensions for a long-edge size, keeping
// the aspect ratio. The scale factor is applied even when it exceeds 1, so a
// target larger than the source upscales (matches product behavior).
func ScaledDimensions(width, height, targetSize int) (int, int) {
	scale := math.Min(float64(targetSize)/float64(width), float64(targetSize)/float64(height))
	return int(float64(width) * scale), int(float64(height) * scale)
}

// AspectRatio returns width/height rounded half-up to two decimals.
func AspectRatio(width, height int) float64 {
	return math.Round(float64(width)/float64(height)*100) / 100
}

// Orientation classifies dimensions as landscape, portrait or square.
func Orientation(width, height int) string {
	switch {
	case width > height:
		return "landscape"
	case height > width:
		return "portrait"
	default:
		return "square"
	}
}
