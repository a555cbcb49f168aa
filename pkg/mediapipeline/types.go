package mediapipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the domain type for asset processing states.
type ProcessingStatus string

// Processing status constants (typed).
const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
)

// EventType selects the processing channel for an asset.
type EventType string

// Event type constants (typed).
const (
	EventTypeImage     EventType = "IMAGE"
	EventTypeVideo     EventType = "VIDEO"
	EventTypeThumbnail EventType = "THUMBNAIL"
)

// Storage purposes used when deriving object keys. The original upload flow
// writes under "originals"; the transform stages write the rest.
const (
	PurposeOriginals  = "originals"
	PurposeProcessed  = "processed"
	PurposeThumbnails = "thumbnails"
	PurposeVideos     = "videos"
)

// Asset is the media record the pipeline reads and writes. Creation and
// deletion belong to the surrounding application; the pipeline only
// transitions ProcessingStatus and the derived fields.
//
// Invariants: derived URLs are set only when ProcessingStatus is COMPLETED;
// ProcessingError is non-empty only when it is FAILED.
type Asset struct {
	ID           uuid.UUID `json:"id"`
	CollectionID uuid.UUID `json:"collection_id"`

	OriginalFilename string `json:"original_filename,omitempty"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`

	// Storage URLs
	OriginalURL       string `json:"original_url"`
	OptimizedURL      string `json:"optimized_url,omitempty"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
	PreviewURL        string `json:"preview_url,omitempty"`
	VideoThumbnailURL string `json:"video_thumbnail_url,omitempty"`

	// Intrinsic metadata. Pointer fields stay nil until a stage extracts them;
	// a failed probe legitimately leaves them unset.
	Width                *int     `json:"width,omitempty"`
	Height               *int     `json:"height,omitempty"`
	AspectRatio          *float64 `json:"aspect_ratio,omitempty"`
	Orientation          string   `json:"orientation,omitempty"`
	VideoDurationSeconds *int     `json:"video_duration_seconds,omitempty"`
	VideoCodec           string   `json:"video_codec,omitempty"`

	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ProcessingError  string           `json:"processing_error,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// IsImage reports whether the asset carries an image MIME type.
func (a *Asset) IsImage() bool { return strings.HasPrefix(a.MimeType, "image/") }

// IsVideo reports whether the asset carries a video MIME type.
func (a *Asset) IsVideo() bool { return strings.HasPrefix(a.MimeType, "video/") }

// MarkFailed transitions the asset to FAILED with a human-readable message.
func (a *Asset) MarkFailed(msg string) {
	a.ProcessingStatus = StatusFailed
	a.ProcessingError = msg
}

// MarkCompleted transitions the asset to COMPLETED and stamps ProcessedAt.
func (a *Asset) MarkCompleted(now time.Time) {
	a.ProcessingStatus = StatusCompleted
	a.ProcessingError = ""
	t := now.UTC()
	a.ProcessedAt = &t
}

// ProcessingEvent is the payload published when an asset needs processing.
// It is transient; durability comes from the messaging layer alone.
type ProcessingEvent struct {
	AssetID      uuid.UUID `json:"assetId"`
	CollectionID uuid.UUID `json:"collectionId"`
	MimeType     string    `json:"mimeType"`
	OriginalURL  string    `json:"originalUrl"`
	Type         EventType `json:"type"`
}

// ObjectInfo describes a stored object as reported by a storage backend.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// ObjectPage is one page of a paginated listing. NextToken is an opaque
// continuation cursor, valid only while Truncated is true.
type ObjectPage struct {
	Objects   []ObjectInfo
	NextToken string
	Truncated bool
}

// PutOptions carries per-object attributes for ObjectStore.Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}
