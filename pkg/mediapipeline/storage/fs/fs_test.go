package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New(Config{
		BaseDir:   t.TempDir(),
		URLPrefix: "http://localhost:8080/media",
	})
	require.NoError(t, err)
	return backend
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	key := "album-1/originals/photo.jpg"
	require.NoError(t, backend.Put(ctx, key, strings.NewReader("content"), mediapipeline.PutOptions{}))

	rc, err := backend.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Get(ctx, key)
	assert.ErrorIs(t, err, mediapipeline.ErrObjectNotFound)
}

func TestGetMissingObject(t *testing.T) {
	backend := newTestBackend(t)
	_, err := backend.Get(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, mediapipeline.ErrObjectNotFound)
}

func TestDeleteMissingObject(t *testing.T) {
	backend := newTestBackend(t)
	err := backend.Delete(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, mediapipeline.ErrObjectNotFound)
}

func TestDeleteCleansEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	key := "album-1/originals/photo.jpg"
	require.NoError(t, backend.Put(ctx, key, strings.NewReader("x"), mediapipeline.PutOptions{}))
	require.NoError(t, backend.Delete(ctx, key))

	_, err := os.Stat(filepath.Join(backend.baseDir, "album-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestHeadSniffsContentType(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	require.NoError(t, backend.Put(ctx, "page.html", strings.NewReader("<html><body>hi</body></html>"), mediapipeline.PutOptions{}))

	info, err := backend.Head(ctx, "page.html")
	require.NoError(t, err)
	assert.Equal(t, int64(28), info.Size)
	assert.Contains(t, info.ContentType, "text/html")
}

func TestListPagePaginates(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	keys := []string{
		"a/1.jpg", "a/2.jpg", "a/3.jpg",
		"b/1.jpg", "b/2.jpg",
	}
	for _, key := range keys {
		require.NoError(t, backend.Put(ctx, key, strings.NewReader("x"), mediapipeline.PutOptions{}))
	}

	page, err := backend.ListPage(ctx, "", "", 3)
	require.NoError(t, err)
	require.Len(t, page.Objects, 3)
	assert.True(t, page.Truncated)
	assert.Equal(t, "a/3.jpg", page.NextToken)

	page, err = backend.ListPage(ctx, "", page.NextToken, 3)
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	assert.False(t, page.Truncated)
	assert.Equal(t, "b/1.jpg", page.Objects[0].Key)
}

func TestListPagePrefixFilter(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	require.NoError(t, backend.Put(ctx, "a/1.jpg", strings.NewReader("x"), mediapipeline.PutOptions{}))
	require.NoError(t, backend.Put(ctx, "b/1.jpg", strings.NewReader("x"), mediapipeline.PutOptions{}))

	page, err := backend.ListPage(ctx, "b/", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "b/1.jpg", page.Objects[0].Key)
}

func TestPublicURLAndKeyFromURL(t *testing.T) {
	backend := newTestBackend(t)

	url := backend.PublicURL("album-1/originals/photo.jpg")
	assert.Equal(t, "http://localhost:8080/media/album-1/originals/photo.jpg", url)

	key, ok := backend.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "album-1/originals/photo.jpg", key)

	_, ok = backend.KeyFromURL("https://elsewhere.example.com/photo.jpg")
	assert.False(t, ok)
}

func TestBucketExists(t *testing.T) {
	backend := newTestBackend(t)

	exists, err := backend.BucketExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, os.RemoveAll(backend.baseDir))
	exists, err = backend.BucketExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, backend.EnsureBucket(context.Background()))
	exists, err = backend.BucketExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}
