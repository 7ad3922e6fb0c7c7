// Package index holds the in-memory corpus of annotated frames and ranks
// them against free-text queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bdougie/framesearch/internal/embeddings"
	"github.com/bdougie/framesearch/internal/models"
)

var (
	ErrInvalidRecord  = errors.New("invalid frame record")
	ErrModelMismatch  = errors.New("embedding model does not match index")
	ErrInvalidTopN    = errors.New("top-n must be positive")
	ErrDimensionDrift = errors.New("embedding dimension does not match index")
)

// Index is an append-only collection of annotated frames embedded with a
// single model.
type Index struct {
	mu        sync.RWMutex
	model     string
	dimension int
	records   []models.AnnotatedFrame
}

func New(model string) *Index {
	return &Index{model: model}
}

// Model returns the embedding model id every record was produced with.
func (ix *Index) Model() string {
	return ix.model
}

// Add appends a copy of frame. Records missing a caption or embedding, or
// whose dimension differs from earlier records, are rejected.
func (ix *Index) Add(frame models.AnnotatedFrame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrInvalidRecord, frame.FrameID, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dimension == 0 {
		ix.dimension = len(frame.Embedding)
	} else if len(frame.Embedding) != ix.dimension {
		return fmt.Errorf("%w: frame %d has %d dimensions, want %d",
			ErrDimensionDrift, frame.FrameID, len(frame.Embedding), ix.dimension)
	}

	ix.records = append(ix.records, frame.Clone())
	return nil
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Records returns a copy of the corpus in insertion order.
func (ix *Index) Records() []models.AnnotatedFrame {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]models.AnnotatedFrame, len(ix.records))
	for i, r := range ix.records {
		out[i] = r.Clone()
	}
	return out
}

// Search embeds query with embedder and returns the topN most similar
// frames. An empty index yields an empty result without calling embedder.
func (ix *Index) Search(ctx context.Context, embedder embeddings.Embedder, query string, topN int) ([]models.SearchResult, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, topN)
	}
	if embedder.Model() != ix.model {
		return nil, fmt.Errorf("%w: query model %q, index model %q", ErrModelMismatch, embedder.Model(), ix.model)
	}
	if ix.Len() == 0 {
		return []models.SearchResult{}, nil
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.Rank(vec, topN), nil
}

// Rank scores every record against vec and returns the best topN, most
// similar first. Ties keep insertion order.
func (ix *Index) Rank(vec []float32, topN int) []models.SearchResult {
	if topN <= 0 {
		return []models.SearchResult{}
	}

	ix.mu.RLock()
	results := make([]models.SearchResult, len(ix.records))
	for i, r := range ix.records {
		results[i] = models.SearchResult{
			Frame:      r.Clone(),
			Similarity: CosineSimilarity(vec, r.Embedding),
		}
	}
	ix.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topN < len(results) {
		results = results[:topN]
	}
	return results
}
