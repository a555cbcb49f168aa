package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements mediapipeline.AssetStore using PostgreSQL. Only the fields
// the pipeline reads or writes are persisted here; the wider asset record
// belongs to the application schema.
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL asset store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL asset store with a connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Schema is the DDL for the pipeline's view of the media table. Applied by
// EnsureSchema; safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS media_assets (
    id                     UUID PRIMARY KEY,
    collection_id          UUID NOT NULL,
    original_filename      TEXT,
    mime_type              TEXT NOT NULL,
    file_size_bytes        BIGINT NOT NULL DEFAULT 0,
    original_url           TEXT NOT NULL,
    optimized_url          TEXT,
    thumbnail_url          TEXT,
    preview_url            TEXT,
    video_thumbnail_url    TEXT,
    width                  INT,
    height                 INT,
    aspect_ratio           NUMERIC(5,2),
    orientation            VARCHAR(20),
    video_duration_seconds INT,
    video_codec            VARCHAR(50),
    processing_status      VARCHAR(50) NOT NULL DEFAULT 'PENDING',
    processing_error       TEXT,
    uploaded_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_media_assets_processing ON media_assets (processing_status);
`

// EnsureSchema creates the media_assets table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*mediapipeline.Asset, error) {
	query := `
		SELECT id, collection_id, original_filename, mime_type, file_size_bytes,
		       original_url, optimized_url, thumbnail_url, preview_url, video_thumbnail_url,
		       width, height, aspect_ratio, orientation,
		       video_duration_seconds, video_codec,
		       processing_status, processing_error, uploaded_at, processed_at
		FROM media_assets WHERE id = $1`

	var (
		asset                                                          mediapipeline.Asset
		originalFilename, optimizedURL, thumbnailURL                   *string
		previewURL, videoThumbnailURL, orientation, codec, processErr  *string
		status                                                         string
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&asset.ID, &asset.CollectionID, &originalFilename, &asset.MimeType, &asset.FileSizeBytes,
		&asset.OriginalURL, &optimizedURL, &thumbnailURL, &previewURL, &videoThumbnailURL,
		&asset.Width, &asset.Height, &asset.AspectRatio, &orientation,
		&asset.VideoDurationSeconds, &codec,
		&status, &processErr, &asset.UploadedAt, &asset.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediapipeline.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	asset.OriginalFilename = deref(originalFilename)
	asset.OptimizedURL = deref(optimizedURL)
	asset.ThumbnailURL = deref(thumbnailURL)
	asset.PreviewURL = deref(previewURL)
	asset.VideoThumbnailURL = deref(videoThumbnailURL)
	asset.Orientation = deref(orientation)
	asset.VideoCodec = deref(codec)
	asset.ProcessingStatus = mediapipeline.ProcessingStatus(status)
	asset.ProcessingError = deref(processErr)
	return &asset, nil
}

func (s *Store) Save(ctx context.Context, asset *mediapipeline.Asset) error {
	query := `
		INSERT INTO media_assets (
			id, collection_id, original_filename, mime_type, file_size_bytes,
			original_url, optimized_url, thumbnail_url, preview_url, video_thumbnail_url,
			width, height, aspect_ratio, orientation,
			video_duration_seconds, video_codec,
			processing_status, processing_error, uploaded_at, processed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			optimized_url = EXCLUDED.optimized_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			preview_url = EXCLUDED.preview_url,
			video_thumbnail_url = EXCLUDED.video_thumbnail_url,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			aspect_ratio = EXCLUDED.aspect_ratio,
			orientation = EXCLUDED.orientation,
			video_duration_seconds = EXCLUDED.video_duration_seconds,
			video_codec = EXCLUDED.video_codec,
			processing_status = EXCLUDED.processing_status,
			processing_error = EXCLUDED.processing_error,
			processed_at = EXCLUDED.processed_at`

	_, err := s.db.Exec(ctx, query,
		asset.ID, asset.CollectionID, nilIfEmpty(asset.OriginalFilename), asset.MimeType, asset.FileSizeBytes,
		asset.OriginalURL, nilIfEmpty(asset.OptimizedURL), nilIfEmpty(asset.ThumbnailURL),
		nilIfEmpty(asset.PreviewURL), nilIfEmpty(asset.VideoThumbnailURL),
		asset.Width, asset.Height, asset.AspectRatio, nilIfEmpty(asset.Orientation),
		asset.VideoDurationSeconds, nilIfEmpty(asset.VideoCodec),
		string(asset.ProcessingStatus), nilIfEmpty(asset.ProcessingError),
		asset.UploadedAt, asset.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

// ClaimProcessing performs the compare-and-swap on processing_status so at
// most one worker runs a stage for a given asset.
func (s *Store) ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE media_assets SET processing_status = $1 WHERE id = $2 AND processing_status = $3`,
		string(mediapipeline.StatusProcessing), id, string(mediapipeline.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
