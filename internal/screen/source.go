// internal/screen/source.go
package screen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/overlayhq/sherpa/api/schemas"
)

// StaticSource serves a fixed screenshot on every capture. Useful for tests
// and for driving the engine from a single pre-captured image.
type StaticSource struct {
	mu   sync.RWMutex
	shot schemas.Screenshot
}

// NewStaticSource creates a source that always returns the given screenshot.
func NewStaticSource(shot schemas.Screenshot) *StaticSource {
	return &StaticSource{shot: shot}
}

// Set replaces the screenshot served by subsequent captures.
func (s *StaticSource) Set(shot schemas.Screenshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shot = shot
}

// Capture returns the current screenshot.
func (s *StaticSource) Capture(ctx context.Context) (schemas.Screenshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.shot.IsZero() {
		return schemas.Screenshot{}, fmt.Errorf("static source holds no screenshot")
	}
	return s.shot, nil
}

// FileSource reads an already-encoded screenshot from disk on every capture.
// An external capture pipeline keeps the file fresh; this source is just the
// handoff point.
type FileSource struct {
	path     string
	maxBytes int
}

// NewFileSource creates a source reading from path. maxBytes rejects images
// too large for the VLM request; zero disables the check.
func NewFileSource(path string, maxBytes int) *FileSource {
	return &FileSource{path: path, maxBytes: maxBytes}
}

// Capture reads and returns the file contents with a MIME type inferred from
// the extension.
func (s *FileSource) Capture(ctx context.Context) (schemas.Screenshot, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Screenshot{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return schemas.Screenshot{}, fmt.Errorf("reading screenshot file: %w", err)
	}
	if len(data) == 0 {
		return schemas.Screenshot{}, fmt.Errorf("screenshot file %s is empty", s.path)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return schemas.Screenshot{}, fmt.Errorf("screenshot file %s exceeds %d bytes", s.path, s.maxBytes)
	}

	return schemas.Screenshot{
		MIMEType: mimeTypeForPath(s.path),
		Data:     data,
	}, nil
}

func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
