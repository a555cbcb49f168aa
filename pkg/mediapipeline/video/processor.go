// Package video extracts stream metadata, derives a poster-frame thumbnail
// and transcodes uploaded videos to a streaming-ready encode via external
// probe and encoder tools.
package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/image"
	"go.uber.org/zap"
)

// Hard wall-clock limits for the external tools. A timeout is terminal for
// the stage, exactly like a non-zero exit code.
const (
	probeTimeout     = 30 * time.Second
	posterTimeout    = 60 * time.Second
	transcodeTimeout = 600 * time.Second
)

// Codecs the probe is allowed to record; anything else leaves the field unset.
var acceptedCodecs = map[string]bool{
	"h264": true,
	"hevc": true,
	"vp9":  true,
}

// Config options for the video transform stage.
type Config struct {
	FFmpegPath      string // default "ffmpeg"
	FFprobePath     string // default "ffprobe"
	ThumbnailOffset int    // poster frame offset in seconds (default 3)
	MaxResolution   int    // bound for the constraining dimension (default 1080)
	Quality         int    // CRF value, lower is better quality (default 23)
}

func (c *Config) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.ThumbnailOffset == 0 {
		c.ThumbnailOffset = 3
	}
	if c.MaxResolution == 0 {
		c.MaxResolution = 1080
	}
	if c.Quality == 0 {
		c.Quality = 23
	}
}

// Metadata holds the stream fields the probe can extract. All fields are
// optional; a failed probe leaves them unset without failing the job.
type Metadata struct {
	Width    *int
	Height   *int
	Duration *int
	Codec    string
}

// Processor is the video transform stage.
type Processor struct {
	gateway *mediapipeline.Gateway
	runner  ToolRunner
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewProcessor creates a video processor over the given gateway. Pass a
// custom ToolRunner to stub out ffmpeg/ffprobe in tests.
func NewProcessor(gateway *mediapipeline.Gateway, runner ToolRunner, cfg Config, logger *zap.Logger) *Processor {
	cfg.applyDefaults()
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		gateway: gateway,
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Process fetches the original to a scratch file, probes stream metadata,
// derives a poster frame and a bounded-resolution transcode, and uploads
// both. Scratch files are removed on every exit path. Any failure past the
// probe transitions the asset to FAILED, keeping whatever metadata was
// extracted before the failure.
func (p *Processor) Process(ctx context.Context, asset *mediapipeline.Asset) (*mediapipeline.Asset, error) {
	p.logger.Info("processing video", zap.String("asset_id", asset.ID.String()))

	if err := p.process(ctx, asset); err != nil {
		p.logger.Error("video processing failed",
			zap.String("asset_id", asset.ID.String()),
			zap.Error(err))
		asset.MarkFailed(err.Error())
		return asset, &mediapipeline.ProcessError{AssetID: asset.ID, Stage: "video", Err: err}
	}

	asset.MarkCompleted(p.now())
	p.logger.Info("video processing completed", zap.String("asset_id", asset.ID.String()))
	return asset, nil
}

func (p *Processor) process(ctx context.Context, asset *mediapipeline.Asset) error {
	data, err := p.gateway.Get(ctx, asset.OriginalURL)
	if err != nil {
		return fmt.Errorf("download original: %w", err)
	}

	scratch, err := os.MkdirTemp("", "video-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, "input"+extensionFor(asset.MimeType))
	if err := os.WriteFile(inputPath, data, 0644); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}

	// Probe failures are tolerated; later steps proceed with null metadata.
	meta := p.probe(ctx, inputPath)
	applyMetadata(asset, meta)

	thumbnailURL, err := p.extractPoster(ctx, asset, inputPath, scratch)
	if err != nil {
		return err
	}
	asset.VideoThumbnailURL = thumbnailURL

	optimizedURL, err := p.transcode(ctx, asset, inputPath, scratch)
	if err != nil {
		return err
	}
	asset.OptimizedURL = optimizedURL

	return nil
}

// probe extracts stream metadata via the external probe tool. Errors and
// timeouts are logged, never fatal: absent fields simply stay unset.
func (p *Processor) probe(ctx context.Context, inputPath string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := p.runner.Run(ctx, p.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "stream=width,height,duration,codec_name",
		"-of", "default=noprint_wrappers=1",
		inputPath,
	)
	if err != nil {
		p.logger.Warn("metadata probe failed", zap.Error(err))
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput reads line-oriented key=value probe output. Duration is
// truncated to whole seconds; codecs outside the accepted set are ignored.
func ParseProbeOutput(out []byte) Metadata {
	var meta Metadata

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "width="):
			if v, err := strconv.Atoi(line[len("width="):]); err == nil {
				meta.Width = &v
			}
		case strings.HasPrefix(line, "height="):
			if v, err := strconv.Atoi(line[len("height="):]); err == nil {
				meta.Height = &v
			}
		case strings.HasPrefix(line, "duration="):
			if f, err := strconv.ParseFloat(line[len("duration="):], 64); err == nil {
				v := int(f)
				meta.Duration = &v
			}
		case strings.HasPrefix(line, "codec_name="):
			if codec := line[len("codec_name="):]; acceptedCodecs[codec] {
				meta.Codec = codec
			}
		}
	}
	return meta
}

// extractPoster grabs the frame at the configured offset, scaled to width
// 800 preserving aspect ratio, and uploads it under "thumbnails". Failure is
// terminal for the whole job.
func (p *Processor) extractPoster(ctx context.Context, asset *mediapipeline.Asset, inputPath, scratch string) (string, error) {
	outputPath := filepath.Join(scratch, asset.ID.String()+"_thumb.jpg")

	runCtx, cancel := context.WithTimeout(ctx, posterTimeout)
	defer cancel()

	_, err := p.runner.Run(runCtx, p.cfg.FFmpegPath,
		"-ss", strconv.Itoa(p.cfg.ThumbnailOffset),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=800:-1",
		"-q:v", "2",
		"-y",
		outputPath,
	)
	if err != nil {
		return "", &mediapipeline.ToolError{Tool: "ffmpeg thumbnail", Err: err}
	}

	thumbBytes, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("read poster frame: %w", err)
	}

	return p.gateway.Put(ctx, thumbBytes,
		asset.CollectionID.String(), mediapipeline.PurposeThumbnails,
		asset.ID.String()+"_thumb.jpg", "image/jpeg")
}

// transcode re-encodes the video with a bounded resolution, re-encoded audio
// and the fast-start flag so playback can begin before the file is fully
// downloaded. Failure is terminal.
func (p *Processor) transcode(ctx context.Context, asset *mediapipeline.Asset, inputPath, scratch string) (string, error) {
	outputPath := filepath.Join(scratch, asset.ID.String()+"_optimized.mp4")

	runCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	p.logger.Info("starting video transcode", zap.String("asset_id", asset.ID.String()))

	_, err := p.runner.Run(runCtx, p.cfg.FFmpegPath,
		"-i", inputPath,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(p.cfg.Quality),
		"-preset", "medium",
		"-vf", "scale="+ScaleFilter(asset.Width, asset.Height, p.cfg.MaxResolution),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	if err != nil {
		return "", &mediapipeline.ToolError{Tool: "ffmpeg transcode", Err: err}
	}

	videoBytes, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("read transcoded output: %w", err)
	}

	return p.gateway.Put(ctx, videoBytes,
		asset.CollectionID.String(), mediapipeline.PurposeVideos,
		asset.ID.String()+"_optimized.mp4", "video/mp4")
}

// ScaleFilter bounds the constraining dimension: width for landscape, height
// for portrait. "-1:-1" leaves the video untouched when both dimensions
// already fit or are unknown.
func ScaleFilter(width, height *int, maxResolution int) string {
	if width == nil || height == nil {
		return "-1:-1"
	}
	if *width > *height {
		if *width > maxResolution {
			return fmt.Sprintf("%d:-1", maxResolution)
		}
		return "-1:-1"
	}
	if *height > maxResolution {
		return fmt.Sprintf("-1:%d", maxResolution)
	}
	return "-1:-1"
}

func applyMetadata(asset *mediapipeline.Asset, meta Metadata) {
	asset.Width = meta.Width
	asset.Height = meta.Height
	asset.VideoDurationSeconds = meta.Duration
	asset.VideoCodec = meta.Codec

	if meta.Width != nil && meta.Height != nil {
		ratio := image.AspectRatio(*meta.Width, *meta.Height)
		asset.AspectRatio = &ratio
		asset.Orientation = image.Orientation(*meta.Width, *meta.Height)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	default:
		return ".mp4"
	}
}
