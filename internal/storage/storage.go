package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/framesearch/internal/models"
)

const (
	batchSize = 10 // Number of results to batch write

	AnnotationsFile = "annotations.json"
	ReportFile      = "run_report.json"
)

// Storage defines the interface for storing annotated frames
type Storage interface {
	// AddResult adds a single annotated frame
	AddResult(ctx context.Context, result models.AnnotatedFrame) error

	// Flush ensures all pending results are saved
	Flush() error
}

// fileStorage batches annotated frames and appends them to a JSON file.
type fileStorage struct {
	results []models.AnnotatedFrame
	mu      sync.Mutex
	path    string
	written bool
	logger  *slog.Logger
}

// NewFileStorage writes annotations to AnnotationsFile inside dir. Any
// file left by a previous run is replaced on the first flush.
func NewFileStorage(dir string, logger *slog.Logger) Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileStorage{
		path:   filepath.Join(dir, AnnotationsFile),
		logger: logger,
	}
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *fileStorage) AddResult(ctx context.Context, result models.AnnotatedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results) >= batchSize {
		if err := s.flush(); err != nil {
			s.logger.Error("flushing annotations", "path", s.path, "error", err)
			return err
		}
	}
	return nil
}

// Flush writes all pending results to disk
func (s *fileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *fileStorage) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	var existing []models.AnnotatedFrame
	if s.written {
		var err error
		if existing, err = ReadAnnotations(s.path); err != nil {
			return err
		}
	}

	if err := writeJSON(s.path, append(existing, s.results...)); err != nil {
		return err
	}

	s.written = true
	s.results = nil // Clear the batch
	return nil
}

// ReadAnnotations loads the frames written by a file storage.
func ReadAnnotations(path string) ([]models.AnnotatedFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var frames []models.AnnotatedFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal annotations: %w", err)
	}
	return frames, nil
}

// WriteReport saves a run report as ReportFile inside dir.
func WriteReport(dir string, report models.RunReport) (string, error) {
	path := filepath.Join(dir, ReportFile)
	if err := writeJSON(path, report); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
