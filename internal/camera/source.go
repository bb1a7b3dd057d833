package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Source yields one still image per call.
type Source interface {
	Grab(ctx context.Context) ([]byte, error)
}

// maxSnapshotSize caps a single still fetched from a camera.
const maxSnapshotSize = 32 << 20

// SnapshotSource fetches stills from an IP camera's snapshot URL.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a source polling url for each frame.
func NewSnapshotSource(url string, timeout time.Duration) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Grab implements Source.
func (s *SnapshotSource) Grab(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot failed (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("camera returned an empty snapshot")
	}
	return data, nil
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// DirectorySource cycles through the image files of a directory in name
// order. The directory is re-read on every grab so files dropped in by an
// external grabber are picked up.
type DirectorySource struct {
	dir string

	mu   sync.Mutex
	next int
}

// NewDirectorySource creates a source over dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// Grab implements Source.
func (s *DirectorySource) Grab(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := s.imageFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", s.dir)
	}

	s.mu.Lock()
	name := files[s.next%len(files)]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return data, nil
}

func (s *DirectorySource) imageFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}
