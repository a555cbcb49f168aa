// Package objectkey generates collision-free object keys for the storage
// gateway. Keys are namespaced "{collectionID}/{purpose}/{uniqueFilename}";
// the unique filename combines a nanosecond timestamp with a random suffix so
// concurrent uploads never collide without central coordination.
package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator builds object keys and unique filenames.
type Generator struct {
	now func() time.Time
}

// New creates a key generator using the wall clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a key generator with an injected clock.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// UniqueFilename derives a storage filename from an original filename. The
// result is the digits of the current UTC timestamp, an underscore, the first
// eight characters of a random UUID, and the original extension (if any).
func (g *Generator) UniqueFilename(originalFilename string) string {
	timestamp := digitsOnly(g.now().UTC().Format(time.RFC3339Nano))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	ext := ""
	if idx := strings.LastIndex(originalFilename, "."); idx >= 0 {
		ext = originalFilename[idx:]
	}

	return timestamp + "_" + suffix + ext
}

// Key builds the namespaced object key for a collection, purpose and
// already-unique filename.
func (g *Generator) Key(collectionID, purpose, filename string) string {
	return fmt.Sprintf("%s/%s/%s", collectionID, purpose, filename)
}

// Sanitize replaces characters outside [a-zA-Z0-9.-] with underscores so a
// caller-supplied filename is safe as a key segment.
func Sanitize(filename string) string {
	var b strings.Builder
	for _, r := range path.Base(filename) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
