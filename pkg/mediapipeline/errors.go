package mediapipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrAssetNotFound indicates an asset record was not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrObjectNotFound indicates a stored object was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrBackendNotConfigured indicates a required storage backend is absent
	ErrBackendNotConfigured = errors.New("storage backend not configured")

	// ErrDecodeFailed indicates media bytes could not be decoded. Terminal for
	// the asset; not retried.
	ErrDecodeFailed = errors.New("failed to decode media")
)

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ToolError represents an external tool invocation failure: a non-zero exit
// code and an elapsed timeout are treated identically.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ProcessError represents a transform stage failure for a specific asset.
type ProcessError struct {
	AssetID uuid.UUID
	Stage   string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s processing failed for asset %s: %v", e.Stage, e.AssetID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
