package analyzer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framesearch/internal/analyzer"
	"github.com/bdougie/framesearch/internal/models"
)

func fastOptions() analyzer.AnnotatorOptions {
	return analyzer.AnnotatorOptions{
		KeyPrefix:      "frames/clip",
		CallTimeout:    100 * time.Millisecond,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestAnnotate(t *testing.T) {
	store := newMemStore()
	captioner := &fakeCaptioner{}
	embedder := &fakeEmbedder{}
	a := analyzer.NewAnnotator(store, captioner, embedder, fastOptions(), discardLogger())

	frame := writeFrames(t, 1)[0]
	record, err := a.Annotate(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, 0, record.FrameID)
	assert.Equal(t, frame.Path, record.SourcePath)
	assert.Equal(t, "https://store.example/frames/clip/frame_0000.jpg", record.PublishedURL)
	assert.Contains(t, record.Caption, record.PublishedURL, "caption is requested for the published URL")
	assert.Equal(t, []float32{float32(len(record.Caption)), 1, 0.5}, record.Embedding, "embedding is derived from the caption")
	assert.NoError(t, record.Validate())

	stored, err := store.Get(context.Background(), "frames/clip/frame_0000.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg 0"), stored)
}

func TestAnnotateRetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	store.failN.Store(1)
	captioner := &fakeCaptioner{failFirst: 2}
	a := analyzer.NewAnnotator(store, captioner, &fakeEmbedder{}, fastOptions(), discardLogger())

	record, err := a.Annotate(context.Background(), writeFrames(t, 1)[0])
	require.NoError(t, err)
	assert.NotEmpty(t, record.Caption)
	assert.EqualValues(t, 3, captioner.calls.Load())
}

func TestAnnotateGivesUpAfterMaxAttempts(t *testing.T) {
	captioner := &fakeCaptioner{failFirst: 100}
	embedder := &fakeEmbedder{}
	a := analyzer.NewAnnotator(newMemStore(), captioner, embedder, fastOptions(), discardLogger())

	_, err := a.Annotate(context.Background(), writeFrames(t, 1)[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caption failed after 3 attempt(s)")
	assert.EqualValues(t, 3, captioner.calls.Load())
	assert.Zero(t, embedder.calls.Load(), "no embedding without a caption")
}

func TestAnnotateTimesOutHungCalls(t *testing.T) {
	opts := fastOptions()
	opts.CallTimeout = 20 * time.Millisecond
	opts.MaxAttempts = 2
	captioner := &fakeCaptioner{hang: "frame_0000"}
	a := analyzer.NewAnnotator(newMemStore(), captioner, &fakeEmbedder{}, opts, discardLogger())

	start := time.Now()
	_, err := a.Annotate(context.Background(), writeFrames(t, 1)[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAnnotateNoPlaceholders(t *testing.T) {
	tests := []struct {
		name      string
		captioner *fakeCaptioner
		embedder  *fakeEmbedder
		wantErr   error
	}{
		{
			name:      "empty caption",
			captioner: &fakeCaptioner{empty: true},
			embedder:  &fakeEmbedder{},
			wantErr:   analyzer.ErrEmptyCaption,
		},
		{
			name:      "embedding failure",
			captioner: &fakeCaptioner{},
			embedder:  &fakeEmbedder{err: errors.New("embedding service down")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzer.NewAnnotator(newMemStore(), tt.captioner, tt.embedder, fastOptions(), discardLogger())

			record, err := a.Annotate(context.Background(), writeFrames(t, 1)[0])
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, models.AnnotatedFrame{}, record)
		})
	}
}

func TestAnnotateMissingFrameFile(t *testing.T) {
	a := analyzer.NewAnnotator(newMemStore(), &fakeCaptioner{}, &fakeEmbedder{}, fastOptions(), discardLogger())

	_, err := a.Annotate(context.Background(), models.FrameImage{SceneIndex: 1, Path: "/does/not/exist.jpg"})
	assert.Error(t, err)
}

func TestAnnotateStopsOnCancelledContext(t *testing.T) {
	captioner := &fakeCaptioner{failFirst: 100}
	a := analyzer.NewAnnotator(newMemStore(), captioner, &fakeEmbedder{}, fastOptions(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Annotate(ctx, writeFrames(t, 1)[0])
	assert.ErrorIs(t, err, context.Canceled)
}
