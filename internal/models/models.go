package models

import (
	"errors"
	"math"
	"time"
)

// Scene is a half-open frame interval [StartFrame, EndFrame) of one video.
type Scene struct {
	Index      int     `json:"index"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	StartTime  float64 `json:"start_time,omitempty"`
	EndTime    float64 `json:"end_time,omitempty"`
}

// Frames returns the number of frames in the scene.
func (s Scene) Frames() int {
	return s.EndFrame - s.StartFrame
}

// FrameImage is the key frame extracted for one scene
type FrameImage struct {
	SceneIndex  int    `json:"scene_index"`
	FrameNumber int    `json:"frame_number"`
	Path        string `json:"path"`
}

// WorkItem represents a frame to be annotated
type WorkItem struct {
	Frame    FrameImage
	FrameNum int
	Total    int
}

// AnnotatedFrame is the unit stored in the frame index.
type AnnotatedFrame struct {
	FrameID      int       `json:"frame_id"`
	SourcePath   string    `json:"source_path"`
	PublishedURL string    `json:"published_url"`
	Caption      string    `json:"caption"`
	Embedding    []float32 `json:"-"`
}

var (
	ErrMissingCaption     = errors.New("annotated frame has no caption")
	ErrMissingEmbedding   = errors.New("annotated frame has no embedding")
	ErrNonFiniteEmbedding = errors.New("annotated frame embedding is not finite")
)

// Validate reports whether the record may enter the index. Embeddings
// holding NaN or Inf have no defined similarity and are rejected.
func (f AnnotatedFrame) Validate() error {
	if f.Caption == "" {
		return ErrMissingCaption
	}
	if len(f.Embedding) == 0 {
		return ErrMissingEmbedding
	}
	for _, v := range f.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return ErrNonFiniteEmbedding
		}
	}
	return nil
}

// Clone returns a copy that shares no memory with f.
func (f AnnotatedFrame) Clone() AnnotatedFrame {
	out := f
	out.Embedding = append([]float32(nil), f.Embedding...)
	return out
}

// SearchResult pairs an indexed frame with its similarity to a query.
type SearchResult struct {
	Frame      AnnotatedFrame `json:"frame"`
	Similarity float64        `json:"similarity"`
}

// FrameFailure records a frame dropped during annotation.
type FrameFailure struct {
	FrameID int    `json:"frame_id"`
	Path    string `json:"path"`
	Error   string `json:"error"`
}

// QueryResult is one answered query in a run report.
type QueryResult struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	RunID          string           `json:"run_id"`
	Video          string           `json:"video"`
	CaptionModel   string           `json:"caption_model"`
	EmbeddingModel string           `json:"embedding_model"`
	Threshold      float64          `json:"threshold"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	Scenes         []Scene          `json:"scenes"`
	Frames         []AnnotatedFrame `json:"frames"`
	Failures       []FrameFailure   `json:"failures,omitempty"`
	Queries        []QueryResult    `json:"queries,omitempty"`
}
