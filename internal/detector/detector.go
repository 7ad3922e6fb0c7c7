package detector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bdougie/framesearch/internal/models"
)

const (
	DefaultThreshold   = 30.0
	DefaultMinSceneLen = 15
	DefaultWidth       = 160
	DefaultHeight      = 90
)

// Options configures a Detector. Zero values fall back to the defaults.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threshold   float64
	MinSceneLen int
	Width       int
	Height      int
}

// Detector splits a video into scenes using a content-change heuristic.
type Detector struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Detector {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinSceneLen <= 0 {
		opts.MinSceneLen = DefaultMinSceneLen
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{opts: opts, logger: logger}
}

// Threshold returns the effective cut threshold.
func (d *Detector) Threshold() float64 {
	return d.opts.Threshold
}

// DetectScenes decodes the video and returns its scenes in order. Decode
// failures are logged and reported as zero scenes.
func (d *Detector) DetectScenes(ctx context.Context, videoPath string) []models.Scene {
	if _, err := os.Stat(videoPath); err != nil {
		d.logger.Warn("scene detection skipped", "video", videoPath, "error", err)
		return nil
	}

	scenes, err := d.decodeAndScan(ctx, videoPath)
	if err != nil {
		d.logger.Warn("scene detection failed", "video", videoPath, "error", err)
		return nil
	}

	if fps, err := d.probeFrameRate(ctx, videoPath); err != nil {
		d.logger.Debug("frame rate unavailable, scenes carry no timestamps", "error", err)
	} else {
		for i := range scenes {
			scenes[i].StartTime = float64(scenes[i].StartFrame) / fps
			scenes[i].EndTime = float64(scenes[i].EndFrame) / fps
		}
	}

	d.logger.Info("scene detection finished",
		"video", videoPath,
		"scenes", len(scenes),
		"threshold", d.opts.Threshold,
	)
	return scenes
}

func (d *Detector) decodeAndScan(ctx context.Context, videoPath string) ([]models.Scene, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.opts.FFmpegPath,
		"-v", "error",
		"-i", videoPath,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", d.opts.Width, d.opts.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	scenes, scanErr := d.Scan(stdout, d.opts.Width, d.opts.Height)
	if scanErr != nil {
		cancel()
	}
	waitErr := cmd.Wait()

	if scanErr != nil {
		return nil, scanErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\nOutput: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	return scenes, nil
}

// Scan reads consecutive rgb24 frames of the given size from r and returns
// the detected scenes. A stream with no cuts yields no scenes. A trailing
// partial frame is ignored.
func (d *Detector) Scan(r io.Reader, width, height int) ([]models.Scene, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	pixels := width * height
	buf := make([]byte, pixels*3)
	br := bufio.NewReaderSize(r, len(buf))

	var prev, cur hsvFrame
	var cuts []int
	lastCut := 0
	frame := 0

	for {
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("read frame %d: %w", frame, err)
		}

		toHSV(buf, pixels, &cur)
		if frame > 0 {
			score := contentScore(&prev, &cur)
			if score >= d.opts.Threshold && frame-lastCut >= d.opts.MinSceneLen {
				d.logger.Debug("cut detected", "frame", frame, "score", score)
				cuts = append(cuts, frame)
				lastCut = frame
			}
		}
		prev, cur = cur, prev
		frame++
	}

	return scenesFromCuts(cuts, frame), nil
}

// scenesFromCuts converts cut positions into contiguous scenes covering
// [0, total). No cuts means no scenes.
func scenesFromCuts(cuts []int, total int) []models.Scene {
	if len(cuts) == 0 {
		return nil
	}

	scenes := make([]models.Scene, 0, len(cuts)+1)
	start := 0
	for _, cut := range cuts {
		scenes = append(scenes, models.Scene{Index: len(scenes), StartFrame: start, EndFrame: cut})
		start = cut
	}
	scenes = append(scenes, models.Scene{Index: len(scenes), StartFrame: start, EndFrame: total})
	return scenes
}

func (d *Detector) probeFrameRate(ctx context.Context, videoPath string) (float64, error) {
	out, err := exec.CommandContext(ctx, d.opts.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFrameRate(strings.TrimSpace(string(out)))
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	dv := 1.0
	if found {
		if dv, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
	}
	if n <= 0 || dv <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return n / dv, nil
}
