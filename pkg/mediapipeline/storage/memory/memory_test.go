package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetHead(t *testing.T) {
	ctx := context.Background()
	backend := New("photos")

	opts := mediapipeline.PutOptions{
		ContentType: "image/jpeg",
		Metadata:    map[string]string{"original-filename": "photo.jpg"},
	}
	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("content"), opts))

	rc, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	info, err := backend.Head(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, "image/jpeg", info.ContentType)
	assert.Equal(t, "photo.jpg", info.Metadata["original-filename"])
}

func TestGetMissing(t *testing.T) {
	backend := New("photos")
	_, err := backend.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, mediapipeline.ErrObjectNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	backend := New("photos")

	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("x"), mediapipeline.PutOptions{}))
	require.NoError(t, backend.Delete(ctx, "k"))
	assert.Equal(t, 0, backend.Len())

	// Deleting a missing key is not an error here.
	assert.NoError(t, backend.Delete(ctx, "k"))
}

func TestListPagePaginates(t *testing.T) {
	ctx := context.Background()
	backend := New("photos")

	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("obj-%02d", i)
		require.NoError(t, backend.Put(ctx, key, strings.NewReader("x"), mediapipeline.PutOptions{}))
	}

	var seen []string
	token := ""
	pages := 0
	for {
		page, err := backend.ListPage(ctx, "", token, 10)
		require.NoError(t, err)
		pages++
		for _, obj := range page.Objects {
			seen = append(seen, obj.Key)
		}
		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	assert.Equal(t, 3, pages)
	require.Len(t, seen, 25)
	assert.Equal(t, "obj-00", seen[0])
	assert.Equal(t, "obj-24", seen[24])
	assert.True(t, sortedStrings(seen))
}

func TestListPagePrefix(t *testing.T) {
	ctx := context.Background()
	backend := New("photos")

	require.NoError(t, backend.Put(ctx, "a/1", strings.NewReader("x"), mediapipeline.PutOptions{}))
	require.NoError(t, backend.Put(ctx, "b/1", strings.NewReader("x"), mediapipeline.PutOptions{}))

	page, err := backend.ListPage(ctx, "a/", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "a/1", page.Objects[0].Key)
}

func TestBucketLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := NewUncreated("photos")

	exists, err := backend.BucketExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, backend.EnsureBucket(ctx))
	exists, err = backend.BucketExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPublicURLAndKeyFromURL(t *testing.T) {
	backend := New("photos")

	url := backend.PublicURL("album/photo.jpg")
	assert.Equal(t, "memory://photos/album/photo.jpg", url)

	key, ok := backend.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "album/photo.jpg", key)

	_, ok = backend.KeyFromURL("memory://other/album/photo.jpg")
	assert.False(t, ok)
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
