package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
)

// Backend is an in-memory implementation of the mediapipeline.ObjectStore
// interface, used in tests and as a throwaway development backend.
type Backend struct {
	mu      sync.RWMutex
	bucket  string
	created bool
	objects map[string]entry
}

type entry struct {
	data        []byte
	contentType string
	metadata    map[string]string
	updatedAt   time.Time
}

// New creates a new in-memory storage backend. The bucket starts existing;
// use NewUncreated to exercise bucket-provisioning paths.
func New(bucket string) *Backend {
	return &Backend{
		bucket:  bucket,
		created: true,
		objects: make(map[string]entry),
	}
}

// NewUncreated creates an in-memory backend whose bucket does not exist yet.
func NewUncreated(bucket string) *Backend {
	return &Backend{
		bucket:  bucket,
		objects: make(map[string]entry),
	}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts mediapipeline.PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	metadata := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = entry{
		data:        data,
		contentType: contentType,
		metadata:    metadata,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.objects[key]
	if !ok {
		return nil, mediapipeline.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *Backend) Head(ctx context.Context, key string) (*mediapipeline.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.objects[key]
	if !ok {
		return nil, mediapipeline.ErrObjectNotFound
	}
	return &mediapipeline.ObjectInfo{
		Key:         key,
		Size:        int64(len(e.data)),
		ContentType: e.contentType,
		UpdatedAt:   e.updatedAt,
		Metadata:    e.metadata,
	}, nil
}

// ListPage lists keys in lexical order. The continuation token is the last
// key of the previous page.
func (b *Backend) ListPage(ctx context.Context, prefix, token string, maxKeys int) (*mediapipeline.ObjectPage, error) {
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	b.mu.RUnlock()
	sort.Strings(keys)

	page := &mediapipeline.ObjectPage{}
	for _, k := range keys {
		if token != "" && k <= token {
			continue
		}
		if len(page.Objects) == maxKeys {
			page.Truncated = true
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			break
		}
		info, err := b.Head(ctx, k)
		if err != nil {
			continue
		}
		page.Objects = append(page.Objects, *info)
	}
	return page, nil
}

func (b *Backend) BucketExists(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.created, nil
}

func (b *Backend) EnsureBucket(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = true
	return nil
}

func (b *Backend) PublicURL(key string) string {
	return fmt.Sprintf("memory://%s/%s", b.bucket, key)
}

func (b *Backend) KeyFromURL(url string) (string, bool) {
	prefix := fmt.Sprintf("memory://%s/", b.bucket)
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):], true
	}
	return "", false
}

// Len reports the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
