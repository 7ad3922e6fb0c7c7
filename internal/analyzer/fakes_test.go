package analyzer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bdougie/framesearch/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory object store that hands out fake URLs.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failN   atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func (s *memStore) Put(_ context.Context, data []byte, key string) (string, error) {
	if s.failN.Add(-1) >= 0 {
		return "", errors.New("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://store.example/" + key, nil
}

// fakeCaptioner blocks on URLs containing hang until the call's context
// ends, and fails the first failFirst calls.
type fakeCaptioner struct {
	hang      string
	failFirst int64
	empty     bool
	calls     atomic.Int64
}

func (c *fakeCaptioner) Model() string { return "vision-test" }

func (c *fakeCaptioner) Caption(ctx context.Context, imageURL string) (string, error) {
	n := c.calls.Add(1)
	if c.hang != "" && strings.Contains(imageURL, c.hang) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= c.failFirst {
		return "", errors.New("429 rate limited")
	}
	if c.empty {
		return "", nil
	}
	return "a person in a red jacket at " + imageURL, nil
}

type fakeEmbedder struct {
	err   error
	calls atomic.Int64
}

func (e *fakeEmbedder) Model() string { return "embed-test" }

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1, 0.5}, nil
}

func writeFrames(t *testing.T, n int) []models.FrameImage {
	t.Helper()
	dir := t.TempDir()
	frames := make([]models.FrameImage, n)
	for i := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("jpeg %d", i)), 0644))
		frames[i] = models.FrameImage{SceneIndex: i, FrameNumber: i * 25, Path: path}
	}
	return frames
}
