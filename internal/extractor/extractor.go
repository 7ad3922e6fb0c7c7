package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bdougie/framesearch/internal/models"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Options struct {
	FFmpegPath string
	OutputDir  string
	Runner     CommandRunner
}

// Extractor materializes the first frame of each scene as a JPEG.
type Extractor struct {
	ffmpegPath string
	outputDir  string
	run        CommandRunner
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Extractor {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ffmpegPath: opts.FFmpegPath,
		outputDir:  opts.OutputDir,
		run:        opts.Runner,
		logger:     logger,
	}
}

// FrameFileName returns the deterministic file name of the i-th key frame.
func FrameFileName(i int) string {
	return fmt.Sprintf("frame_%04d.jpg", i)
}

// ExtractKeyFrames writes one image per scene, named by the scene's position
// in scenes. Scenes whose frame cannot be decoded are skipped. An error is
// returned only when the video or output directory is unusable.
func (e *Extractor) ExtractKeyFrames(ctx context.Context, videoPath string, scenes []models.Scene) ([]models.FrameImage, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file does not exist at path: '%s': %w", videoPath, err)
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", e.outputDir, err)
	}

	e.logger.Info("extracting key frames", "video", videoPath, "scenes", len(scenes), "output", e.outputDir)

	frames := make([]models.FrameImage, 0, len(scenes))
	for i, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		framePath := filepath.Join(e.outputDir, FrameFileName(i))
		if err := e.extractFrame(ctx, videoPath, scene.StartFrame, framePath); err != nil {
			e.logger.Warn("skipping scene, key frame extraction failed",
				"scene", i,
				"frame", scene.StartFrame,
				"error", err,
			)
			continue
		}

		frames = append(frames, models.FrameImage{
			SceneIndex:  i,
			FrameNumber: scene.StartFrame,
			Path:        framePath,
		})
	}

	e.logger.Info("key frame extraction finished", "extracted", len(frames), "scenes", len(scenes))
	return frames, nil
}

// extractFrame seeks by absolute frame index rather than timestamp. The
// select filter decodes from the start of the stream, so each call costs
// time proportional to frameNumber.
func (e *Extractor) extractFrame(ctx context.Context, videoPath string, frameNumber int, framePath string) error {
	if err := os.Remove(framePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale frame: %w", err)
	}

	output, err := e.run(ctx, e.ffmpegPath,
		"-v", "error",
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, frameNumber),
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(string(output)))
	}

	info, err := os.Stat(framePath)
	if err != nil {
		return fmt.Errorf("frame %d not written: %w", frameNumber, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("frame %d is empty, likely past end of stream", frameNumber)
	}
	return nil
}
