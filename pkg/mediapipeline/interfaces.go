package mediapipeline

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// ObjectStore defines the interface for storage backends. Implementations
// must not leak backend-specific types across this boundary; callers only see
// byte streams, keys and URLs.
type ObjectStore interface {
	// Name identifies the backend kind ("memory", "fs", "s3") in logs and
	// storage errors.
	Name() string

	// Put stores content under the given key, overwriting any existing object.
	Put(ctx context.Context, key string, reader io.Reader, opts PutOptions) error

	// Get retrieves content by key. Returns ErrObjectNotFound (wrapped) when
	// the object is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object under key. Implementations may report absence
	// as ErrObjectNotFound; the gateway treats that as success.
	Delete(ctx context.Context, key string) error

	// Head retrieves object metadata without the content.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// ListPage returns one page of objects under prefix. Pass the previous
	// page's NextToken to continue; an empty token starts from the beginning.
	ListPage(ctx context.Context, prefix, token string, maxKeys int) (*ObjectPage, error)

	// BucketExists reports whether the backing bucket/container exists.
	BucketExists(ctx context.Context) (bool, error)

	// EnsureBucket creates the backing bucket/container when missing.
	EnsureBucket(ctx context.Context) error

	// PublicURL returns the backend's publicly resolvable URL for a key, used
	// when no CDN prefix is configured.
	PublicURL(key string) string

	// KeyFromURL extracts the object key embedded in a backend URL. The second
	// return value is false when the URL does not belong to this backend.
	KeyFromURL(url string) (string, bool)
}

// AssetStore is the external metadata store collaborator. The pipeline only
// needs find-by-id, save, and an atomic PENDING -> PROCESSING claim.
type AssetStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Asset, error)
	Save(ctx context.Context, asset *Asset) error

	// ClaimProcessing atomically transitions the asset from PENDING to
	// PROCESSING. It returns false when the asset is not in PENDING, which
	// rejects duplicate concurrent processing of the same asset.
	ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error)
}
