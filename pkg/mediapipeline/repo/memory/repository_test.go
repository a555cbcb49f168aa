package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := New()

	asset := &mediapipeline.Asset{
		ID:               uuid.New(),
		CollectionID:     uuid.New(),
		MimeType:         "image/jpeg",
		ProcessingStatus: mediapipeline.StatusPending,
	}
	require.NoError(t, store.Save(ctx, asset))

	got, err := store.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.ID, got.ID)
	assert.Equal(t, mediapipeline.StatusPending, got.ProcessingStatus)

	// The returned asset is a copy; mutating it must not leak into the store.
	got.ProcessingStatus = mediapipeline.StatusFailed
	fresh, err := store.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, mediapipeline.StatusPending, fresh.ProcessingStatus)
}

func TestGetMissing(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, mediapipeline.ErrAssetNotFound)
}

func TestClaimProcessing(t *testing.T) {
	ctx := context.Background()
	store := New()

	asset := &mediapipeline.Asset{
		ID:               uuid.New(),
		ProcessingStatus: mediapipeline.StatusPending,
	}
	require.NoError(t, store.Save(ctx, asset))

	claimed, err := store.ClaimProcessing(ctx, asset.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := store.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, mediapipeline.StatusProcessing, got.ProcessingStatus)

	// Second claim loses.
	claimed, err = store.ClaimProcessing(ctx, asset.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimProcessingMissingAsset(t *testing.T) {
	store := New()
	claimed, err := store.ClaimProcessing(context.Background(), uuid.New())
	assert.ErrorIs(t, err, mediapipeline.ErrAssetNotFound)
	assert.False(t, claimed)
}

func TestClaimProcessingIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := New()

	asset := &mediapipeline.Asset{
		ID:               uuid.New(),
		ProcessingStatus: mediapipeline.StatusPending,
	}
	require.NoError(t, store.Save(ctx, asset))

	const workers = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimProcessing(ctx, asset.ID)
			if err == nil && claimed {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}
