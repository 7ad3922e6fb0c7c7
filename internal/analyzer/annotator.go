package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bdougie/framesearch/internal/embeddings"
	"github.com/bdougie/framesearch/internal/metrics"
	"github.com/bdougie/framesearch/internal/models"
	"github.com/bdougie/framesearch/internal/storage"
)

const tracerName = "github.com/bdougie/framesearch/internal/analyzer"

const (
	DefaultCallTimeout    = 60 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
)

// FrameAnnotator turns one extracted frame into an index record.
type FrameAnnotator interface {
	Annotate(ctx context.Context, frame models.FrameImage) (models.AnnotatedFrame, error)
}

type AnnotatorOptions struct {
	// KeyPrefix is prepended to the frame file name to form the object key.
	KeyPrefix      string
	CallTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Annotator publishes a frame, captions it and embeds the caption. Each
// external call has its own timeout and is retried with exponential backoff.
type Annotator struct {
	store     storage.ObjectStore
	captioner Captioner
	embedder  embeddings.Embedder
	opts      AnnotatorOptions
	logger    *slog.Logger
}

var _ FrameAnnotator = (*Annotator)(nil)

func NewAnnotator(store storage.ObjectStore, captioner Captioner, embedder embeddings.Embedder, opts AnnotatorOptions, logger *slog.Logger) *Annotator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{
		store:     store,
		captioner: captioner,
		embedder:  embedder,
		opts:      opts,
		logger:    logger,
	}
}

// Annotate runs publish, caption and embed in sequence. Any failing step
// fails the frame; no placeholder caption or vector is substituted.
func (a *Annotator) Annotate(ctx context.Context, frame models.FrameImage) (models.AnnotatedFrame, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Annotator.Annotate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("frame.id", frame.SceneIndex),
		attribute.String("frame.path", frame.Path),
	)

	record, err := a.annotate(ctx, frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.AnnotatedFrame{}, err
	}
	return record, nil
}

func (a *Annotator) annotate(ctx context.Context, frame models.FrameImage) (models.AnnotatedFrame, error) {
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return models.AnnotatedFrame{}, fmt.Errorf("read frame: %w", err)
	}

	key := storage.ObjectKey(a.opts.KeyPrefix, filepath.Base(frame.Path))
	publishedURL, err := withRetry(ctx, a, "publish", frame.SceneIndex, func(ctx context.Context) (string, error) {
		return a.store.Put(ctx, data, key)
	})
	if err != nil {
		return models.AnnotatedFrame{}, err
	}

	caption, err := withRetry(ctx, a, "caption", frame.SceneIndex, func(ctx context.Context) (string, error) {
		c, err := a.captioner.Caption(ctx, publishedURL)
		if err == nil && c == "" {
			err = ErrEmptyCaption
		}
		return c, err
	})
	if err != nil {
		return models.AnnotatedFrame{}, err
	}

	embedding, err := withRetry(ctx, a, "embed", frame.SceneIndex, func(ctx context.Context) ([]float32, error) {
		v, err := a.embedder.Embed(ctx, caption)
		if err == nil && len(v) == 0 {
			err = embeddings.ErrEmptyEmbedding
		}
		return v, err
	})
	if err != nil {
		return models.AnnotatedFrame{}, err
	}

	return models.AnnotatedFrame{
		FrameID:      frame.SceneIndex,
		SourcePath:   frame.Path,
		PublishedURL: publishedURL,
		Caption:      caption,
		Embedding:    embedding,
	}, nil
}

func (a *Annotator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.opts.InitialBackoff
	b.MaxInterval = a.opts.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.opts.MaxAttempts-1)), ctx)
}

// withRetry runs call with a per-attempt timeout until it succeeds, the
// attempts are exhausted or ctx is done.
func withRetry[T any](ctx context.Context, a *Annotator, step string, frameID int, call func(context.Context) (T, error)) (T, error) {
	var out T
	attempt := 0

	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		v, err := call(callCtx)
		metrics.CallDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		out = v
		return nil
	}

	notify := func(err error, delay time.Duration) {
		metrics.RetryTotal.WithLabelValues(step).Inc()
		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
			attribute.String("step", step),
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		))
		a.logger.Warn("retrying frame step",
			"step", step,
			"frame", frameID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, a.newBackOff(ctx), notify); err != nil {
		return out, fmt.Errorf("%s failed after %d attempt(s): %w", step, attempt, err)
	}
	return out, nil
}
