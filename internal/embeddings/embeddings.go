package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("no embedding returned")

// ErrQueueFull is returned when the service cannot accept more work.
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// Embedder turns text into a fixed-length vector. Vectors from different
// models are not comparable, so every embedder reports its model id.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Result represents the result of embedding generation
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	Ctx     context.Context
	Content string
	Result  chan<- Result
}

// Service bounds concurrent provider calls and caches embeddings by text.
type Service struct {
	embedder   Embedder
	numWorkers int
	workQueue  chan Work
	cache      sync.Map // Thread-safe map for caching embeddings
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var _ Embedder = (*Service)(nil)

// NewService creates a new embedding service with the specified number of workers
func NewService(embedder Embedder, numWorkers, queueSize int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	service := &Service{
		embedder:   embedder,
		numWorkers: numWorkers,
		workQueue:  make(chan Work, queueSize),
	}
	service.startWorkers()

	return service
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				if err := work.Ctx.Err(); err != nil {
					work.Result <- Result{Content: work.Content, Error: err}
					continue
				}

				if cached, ok := s.lookup(work.Content); ok {
					work.Result <- Result{Content: work.Content, Embedding: cached}
					continue
				}

				embedding, err := s.embedder.Embed(work.Ctx, work.Content)
				if err == nil && len(embedding) == 0 {
					err = ErrEmptyEmbedding
				}
				if err == nil {
					s.cache.Store(work.Content, embedding)
				}

				work.Result <- Result{
					Content:   work.Content,
					Embedding: embedding,
					Error:     err,
				}
			}
		}()
	}
}

func (s *Service) lookup(content string) ([]float32, bool) {
	v, ok := s.cache.Load(content)
	if !ok {
		return nil, false
	}
	embedding, ok := v.([]float32)
	return embedding, ok
}

// GetEmbedding requests an embedding generation asynchronously
func (s *Service) GetEmbedding(ctx context.Context, content string) <-chan Result {
	resultChan := make(chan Result, 1)

	if cached, ok := s.lookup(content); ok {
		resultChan <- Result{Content: content, Embedding: cached}
		return resultChan
	}

	select {
	case s.workQueue <- Work{Ctx: ctx, Content: content, Result: resultChan}:
	default:
		resultChan <- Result{Content: content, Error: ErrQueueFull}
	}

	return resultChan
}

// Embed blocks until the embedding is ready or ctx is done.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case res := <-s.GetEmbedding(ctx, text):
		if res.Error != nil {
			return nil, fmt.Errorf("embed with %s: %w", s.Model(), res.Error)
		}
		return append([]float32(nil), res.Embedding...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) Model() string {
	return s.embedder.Model()
}

// Close shuts down the embedding service and waits for all workers to finish
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.workQueue)
	})
	s.wg.Wait()
}
