package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bdougie/framesearch/internal/index"
	"github.com/bdougie/framesearch/internal/metrics"
	"github.com/bdougie/framesearch/internal/models"
	"github.com/bdougie/framesearch/internal/storage"
)

const DefaultMaxWorkers = 10

// SceneDetector partitions a video into scenes.
type SceneDetector interface {
	DetectScenes(ctx context.Context, videoPath string) []models.Scene
}

// FrameExtractor materializes one key frame per scene.
type FrameExtractor interface {
	ExtractKeyFrames(ctx context.Context, videoPath string, scenes []models.Scene) ([]models.FrameImage, error)
}

type ProcessorOptions struct {
	MaxWorkers     int
	EmbeddingModel string
}

// Processor runs detect, extract, annotate and index for one video.
type Processor struct {
	detector  SceneDetector
	extractor FrameExtractor
	annotator FrameAnnotator
	storage   storage.Storage
	opts      ProcessorOptions
	logger    *slog.Logger
}

// Result is the outcome of one pipeline run.
type Result struct {
	Scenes   []models.Scene
	Frames   []models.FrameImage
	Index    *index.Index
	Failures []models.FrameFailure
}

func NewProcessor(detector SceneDetector, extractor FrameExtractor, annotator FrameAnnotator, store storage.Storage, opts ProcessorOptions, logger *slog.Logger) *Processor {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		detector:  detector,
		extractor: extractor,
		annotator: annotator,
		storage:   store,
		opts:      opts,
		logger:    logger,
	}
}

// ProcessVideo builds a searchable index for videoPath. Zero detected
// scenes is a valid outcome and yields an empty index. Only an unusable
// video or output directory is reported as an error.
func (p *Processor) ProcessVideo(ctx context.Context, videoPath string) (*Result, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Processor.ProcessVideo")
	defer span.End()
	span.SetAttributes(attribute.String("video.path", videoPath))

	p.logger.Info("processing video", "video", videoPath, "workers", p.opts.MaxWorkers)
	result := &Result{Index: index.New(p.opts.EmbeddingModel)}

	stageCtx, stageSpan := tracer.Start(ctx, "detect")
	start := time.Now()
	result.Scenes = p.detector.DetectScenes(stageCtx, videoPath)
	metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	metrics.ScenesDetectedTotal.Add(float64(len(result.Scenes)))
	stageSpan.SetAttributes(attribute.Int("scenes", len(result.Scenes)))
	stageSpan.End()

	if len(result.Scenes) == 0 {
		p.logger.Warn("no scenes detected, index will be empty", "video", videoPath)
		return result, nil
	}

	stageCtx, stageSpan = tracer.Start(ctx, "extract")
	start = time.Now()
	frames, err := p.extractor.ExtractKeyFrames(stageCtx, videoPath, result.Scenes)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	stageSpan.End()
	if err != nil {
		return nil, fmt.Errorf("extract key frames: %w", err)
	}
	result.Frames = frames
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	if len(frames) == 0 {
		p.logger.Warn("no key frames extracted, index will be empty", "video", videoPath)
		return result, nil
	}

	stageCtx, stageSpan = tracer.Start(ctx, "annotate")
	start = time.Now()
	result.Failures = p.AnnotateFrames(stageCtx, frames, result.Index)
	metrics.StageDuration.WithLabelValues("annotate").Observe(time.Since(start).Seconds())
	stageSpan.SetAttributes(
		attribute.Int("frames.indexed", result.Index.Len()),
		attribute.Int("frames.failed", len(result.Failures)),
	)
	stageSpan.End()

	p.logger.Info("video processed",
		"video", videoPath,
		"scenes", len(result.Scenes),
		"frames", len(frames),
		"indexed", result.Index.Len(),
		"failed", len(result.Failures),
	)
	return result, nil
}

// AnnotateFrames annotates frames on a bounded worker pool and appends every
// successful record to ix. Failed frames are logged and returned sorted by
// frame id; they never stop the remaining work.
func (p *Processor) AnnotateFrames(ctx context.Context, frames []models.FrameImage, ix *index.Index) []models.FrameFailure {
	if len(frames) == 0 {
		return nil
	}

	workChan := make(chan models.WorkItem, len(frames))
	resultsChan := make(chan models.AnnotatedFrame, len(frames))
	errorsChan := make(chan models.FrameFailure, len(frames))

	var wg sync.WaitGroup

	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(len(frames)))

	// Start worker pool
	workers := min(p.opts.MaxWorkers, len(frames))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				metrics.ActiveWorkers.Inc()
				record, err := p.annotator.Annotate(ctx, work.Frame)
				metrics.ActiveWorkers.Dec()
				remaining := remainingFrames.Add(-1)

				if err != nil {
					metrics.FramesAnnotatedTotal.WithLabelValues("failed").Inc()
					p.logger.Error("frame annotation failed",
						"frame", work.Frame.SceneIndex,
						"item", fmt.Sprintf("%d/%d", work.FrameNum, work.Total),
						"path", work.Frame.Path,
						"error", err,
					)
					errorsChan <- models.FrameFailure{
						FrameID: work.Frame.SceneIndex,
						Path:    work.Frame.Path,
						Error:   err.Error(),
					}
					continue
				}

				metrics.FramesAnnotatedTotal.WithLabelValues("success").Inc()
				resultsChan <- record
				p.logger.Debug("frame annotated",
					"frame", work.Frame.SceneIndex,
					"remaining", remaining,
					"total", work.Total,
				)
			}
		}()
	}

	// Send work to workers
	go func() {
		for i, frame := range frames {
			workChan <- models.WorkItem{
				Frame:    frame,
				FrameNum: i + 1,
				Total:    len(frames),
			}
		}
		close(workChan)
	}()

	// Collect results
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range resultsChan {
			if err := ix.Add(result); err != nil {
				p.logger.Error("frame rejected by index", "frame", result.FrameID, "error", err)
				errorsChan <- models.FrameFailure{FrameID: result.FrameID, Path: result.SourcePath, Error: err.Error()}
				continue
			}
			if p.storage != nil {
				if err := p.storage.AddResult(ctx, result); err != nil {
					p.logger.Warn("saving annotation failed", "frame", result.FrameID, "error", err)
				}
			}
		}
	}()

	// Wait for all workers and the collector to finish
	wg.Wait()
	close(resultsChan)
	<-collected
	close(errorsChan)

	if p.storage != nil {
		if err := p.storage.Flush(); err != nil {
			p.logger.Warn("failed to flush final annotations", "error", err)
		}
	}

	var failures []models.FrameFailure
	for f := range errorsChan {
		failures = append(failures, f)
	}
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].FrameID < failures[j].FrameID
	})
	return failures
}
