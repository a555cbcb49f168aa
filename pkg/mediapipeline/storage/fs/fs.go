package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
)

// Backend is a filesystem implementation of the mediapipeline.ObjectStore
// interface. Object keys map directly onto paths below the base directory.
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL prefix used to build public URLs (e.g. http://localhost:8080/media)
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

func (b *Backend) Name() string { return "fs" }

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, opts mediapipeline.PutOptions) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(b.baseDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, mediapipeline.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return mediapipeline.ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

func (b *Backend) Head(ctx context.Context, key string) (*mediapipeline.ObjectInfo, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, mediapipeline.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// Sniff content type from the first bytes
	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &mediapipeline.ObjectInfo{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    map[string]string{"content_type": contentType},
	}, nil
}

// ListPage walks the base directory and returns keys in lexical order. The
// continuation token is the last key of the previous page.
func (b *Backend) ListPage(ctx context.Context, prefix, token string, maxKeys int) (*mediapipeline.ObjectPage, error) {
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	var keys []string
	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk base directory: %w", err)
	}
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
	info, err := os.Stat(b.baseDir)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (b *Backend) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(b.baseDir, 0755)
}

func (b *Backend) PublicURL(key string) string {
	if b.urlPrefix == "" {
		return key
	}
	return b.urlPrefix + "/" + key
}

func (b *Backend) KeyFromURL(url string) (string, bool) {
	if b.urlPrefix != "" && strings.HasPrefix(url, b.urlPrefix+"/") {
		return strings.TrimPrefix(url, b.urlPrefix+"/"), true
	}
	return "", false
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
