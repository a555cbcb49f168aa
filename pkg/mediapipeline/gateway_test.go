package mediapipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, cdnURL string) (*mediapipeline.Gateway, *memory.Backend) {
	t.Helper()
	backend := memory.New("photos")
	gw, err := mediapipeline.NewGateway(mediapipeline.GatewayConfig{
		Store:      backend,
		CDNBaseURL: cdnURL,
	})
	require.NoError(t, err)
	return gw, backend
}

func TestGatewayRequiresStore(t *testing.T) {
	_, err := mediapipeline.NewGateway(mediapipeline.GatewayConfig{})
	assert.ErrorIs(t, err, mediapipeline.ErrBackendNotConfigured)
}

func TestGatewayPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, "https://cdn.example.com")

	url, err := gw.Put(ctx, []byte("photo-bytes"), "album-1", mediapipeline.PurposeOriginals, "vacation.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/album-1/originals/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"), url)

	data, err := gw.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo-bytes"), data)
}

func TestGatewayURLWithoutCDNFallsBackToBackend(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, "")

	url, err := gw.Put(ctx, []byte("x"), "album-1", mediapipeline.PurposeOriginals, "a.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://photos/"), url)

	data, err := gw.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestGatewayPreservesOriginalFilenameMetadata(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, "https://cdn.example.com")

	url, err := gw.Put(ctx, []byte("x"), "album-1", mediapipeline.PurposeOriginals, "vacation.jpg", "image/jpeg")
	require.NoError(t, err)

	key := strings.TrimPrefix(url, "https://cdn.example.com/")
	info, err := backend.Head(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "vacation.jpg", info.Metadata["original-filename"])
	assert.Equal(t, "image/jpeg", info.ContentType)
}

func TestGatewayDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, "https://cdn.example.com")

	url, err := gw.Put(ctx, []byte("x"), "album-1", mediapipeline.PurposeOriginals, "a.jpg", "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, gw.Delete(ctx, url))
	assert.Equal(t, 0, backend.Len())

	// Deleting again, or deleting something that never existed, is fine.
	assert.NoError(t, gw.Delete(ctx, url))
	assert.NoError(t, gw.Delete(ctx, "https://cdn.example.com/album-1/originals/never-there.jpg"))
}

func TestGatewayGetTreatsUnknownURLAsBareKey(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, "https://cdn.example.com")

	require.NoError(t, backend.Put(ctx, "album-1/originals/raw.jpg", strings.NewReader("raw"), mediapipeline.PutOptions{}))

	data, err := gw.Get(ctx, "album-1/originals/raw.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), data)
}

func TestGatewayErrorsCarryBackendName(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, "")

	_, err := gw.Get(ctx, "memory://photos/missing/originals/gone.jpg")
	require.Error(t, err)

	var storageErr *mediapipeline.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "memory", storageErr.Backend)
	assert.Equal(t, "get", storageErr.Op)
	assert.ErrorIs(t, err, mediapipeline.ErrObjectNotFound)
}

func TestGatewayExists(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, "")

	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("v"), mediapipeline.PutOptions{}))

	assert.True(t, gw.Exists(ctx, "k"))
	assert.False(t, gw.Exists(ctx, "missing"))
}
