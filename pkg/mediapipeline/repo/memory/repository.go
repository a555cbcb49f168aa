package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
)

// Store implements mediapipeline.AssetStore using in-memory storage.
type Store struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*mediapipeline.Asset
}

// New creates a new in-memory asset store
func New() *Store {
	return &Store{
		assets: make(map[uuid.UUID]*mediapipeline.Asset),
	}
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*mediapipeline.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[id]
	if !ok {
		return nil, mediapipeline.ErrAssetNotFound
	}

	// Copy so callers cannot mutate stored state
	assetCopy := *asset
	return &assetCopy, nil
}

func (s *Store) Save(ctx context.Context, asset *mediapipeline.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assetCopy := *asset
	s.assets[asset.ID] = &assetCopy
	return nil
}

// ClaimProcessing transitions PENDING -> PROCESSING atomically. Returns false
// when the asset is missing or not PENDING.
func (s *Store) ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return false, mediapipeline.ErrAssetNotFound
	}
	if asset.ProcessingStatus != mediapipeline.StatusPending {
		return false, nil
	}
	asset.ProcessingStatus = mediapipeline.StatusProcessing
	return true, nil
}
