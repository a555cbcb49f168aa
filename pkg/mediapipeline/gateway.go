package mediapipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/photovault/media-pipeline/pkg/mediapipeline/objectkey"
	"go.uber.org/zap"
)

// Gateway provides uniform put/get/delete/exists over a single configured
// ObjectStore, producing CDN-resolvable URLs and stable object keys. Backend
// selection happens at construction time; callers never see backend types.
type Gateway struct {
	store  ObjectStore
	keys   *objectkey.Generator
	cdnURL string
	logger *zap.Logger
}

// GatewayConfig options for the storage gateway.
type GatewayConfig struct {
	Store      ObjectStore
	CDNBaseURL string // optional; when empty, the backend's public URL is used
	Keys       *objectkey.Generator
	Logger     *zap.Logger
}

// NewGateway creates a storage gateway over the given backend.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("new gateway: %w", ErrBackendNotConfigured)
	}
	if cfg.Keys == nil {
		cfg.Keys = objectkey.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Gateway{
		store:  cfg.Store,
		keys:   cfg.Keys,
		cdnURL: strings.TrimSuffix(cfg.CDNBaseURL, "/"),
		logger: cfg.Logger,
	}, nil
}

// Put stores content under a freshly generated unique key and returns its
// public URL. The key generator guarantees no overwrites across concurrent
// uploads.
func (g *Gateway) Put(ctx context.Context, data []byte, collectionID, purpose, filename, contentType string) (string, error) {
	unique := g.keys.UniqueFilename(objectkey.Sanitize(filename))
	key := g.keys.Key(collectionID, purpose, unique)

	opts := PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"original-filename": filename},
	}
	if err := g.store.Put(ctx, key, bytes.NewReader(data), opts); err != nil {
		return "", &StorageError{Backend: g.store.Name(), Key: key, Op: "put", Err: err}
	}

	g.logger.Info("stored object",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))

	return g.URLForKey(key), nil
}

// Get resolves the key embedded in a URL and retrieves the object's content.
func (g *Gateway) Get(ctx context.Context, url string) ([]byte, error) {
	key := g.keyFromURL(url)

	rc, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Backend: g.store.Name(), Key: key, Op: "get", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Backend: g.store.Name(), Key: key, Op: "get", Err: err}
	}
	return data, nil
}

// Delete removes the object behind a URL. Absence of the object is not an
// error; delete is idempotent.
func (g *Gateway) Delete(ctx context.Context, url string) error {
	key := g.keyFromURL(url)

	if err := g.store.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return &StorageError{Backend: g.store.Name(), Key: key, Op: "delete", Err: err}
	}

	g.logger.Info("deleted object", zap.String("key", key))
	return nil
}

// Exists reports whether an object is present under key. It deliberately
// returns false rather than an error when the backend is unreachable so
// verification flows degrade gracefully.
func (g *Gateway) Exists(ctx context.Context, key string) bool {
	if g.store == nil {
		return false
	}
	if _, err := g.store.Head(ctx, key); err != nil {
		return false
	}
	return true
}

// URLForKey builds the public URL for an object key: the CDN prefix when
// configured, otherwise the backend's own public URL.
func (g *Gateway) URLForKey(key string) string {
	if g.cdnURL != "" {
		return g.cdnURL + "/" + key
	}
	return g.store.PublicURL(key)
}

// Store exposes the underlying backend for collaborators that need raw object
// enumeration, such as the backup replicator.
func (g *Gateway) Store() ObjectStore {
	return g.store
}

func (g *Gateway) keyFromURL(url string) string {
	if g.cdnURL != "" && strings.HasPrefix(url, g.cdnURL+"/") {
		return strings.TrimPrefix(url, g.cdnURL+"/")
	}
	if key, ok := g.store.KeyFromURL(url); ok {
		return key
	}
	// Not one of ours; treat the input as a bare key.
	return url
}
