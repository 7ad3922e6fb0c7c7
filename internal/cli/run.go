package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bdougie/framesearch/internal/analyzer"
	"github.com/bdougie/framesearch/internal/config"
	"github.com/bdougie/framesearch/internal/detector"
	"github.com/bdougie/framesearch/internal/embeddings"
	"github.com/bdougie/framesearch/internal/extractor"
	"github.com/bdougie/framesearch/internal/metrics"
	"github.com/bdougie/framesearch/internal/models"
	"github.com/bdougie/framesearch/internal/storage"
	"github.com/bdougie/framesearch/internal/tracing"
)

var errNoVideo = errors.New("one of --video or --video-key is required")

var (
	runVideo       string
	runVideoKey    string
	runOutput      string
	runThreshold   float64
	runMaxWorkers  int
	runTopN        int
	runKeyPrefix   string
	runQueries     []string
	runInteractive bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index a video and answer search queries against it",
	Long: `Detect scenes, extract one key frame per scene, caption and embed every
frame, then answer search queries against the resulting in-memory index.

Examples:
  framesearch run --video clip.mp4 --query "a dog on a beach"
  framesearch run --video-key uploads/clip.mp4 --interactive
  framesearch run --video clip.mp4 --threshold 20 --max-workers 4 -q "sunset" -q "crowd"`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runVideo, "video", "", "path to a local video file")
	runCmd.Flags().StringVar(&runVideoKey, "video-key", "", "object key of a video in the video bucket")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output directory (default $FRAMESEARCH_OUTPUT_DIR)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", detector.DefaultThreshold, "scene cut threshold")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", analyzer.DefaultMaxWorkers, "concurrent frame annotations")
	runCmd.Flags().IntVarP(&runTopN, "top-n", "n", 5, "results per query")
	runCmd.Flags().StringVar(&runKeyPrefix, "key-prefix", "", "object key prefix for published frames")
	runCmd.Flags().StringArrayVarP(&runQueries, "query", "q", nil, "query to run after indexing (repeatable)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "read queries from stdin after indexing")
}

// applyRunFlags copies explicitly set flags over the environment values.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if runVideo == "" && runVideoKey == "" {
		return errNoVideo
	}
	if runVideo != "" && runVideoKey != "" {
		return errors.New("--video and --video-key are mutually exclusive")
	}
	if flags.Changed("output") {
		c.OutputDir = runOutput
	}
	if flags.Changed("threshold") {
		c.Threshold = runThreshold
	}
	if flags.Changed("max-workers") {
		c.MaxWorkers = runMaxWorkers
	}
	if flags.Changed("top-n") {
		c.TopN = runTopN
	}
	if flags.Changed("key-prefix") {
		c.KeyPrefix = runKeyPrefix
	}
	return nil
}

func videoName(videoPath string) string {
	return strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down tracer", "error", err)
		}
	}()

	if cfg.MetricsPort > 0 {
		srv := metrics.StartMetricsServer(cfg.MetricsPort, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runID := uuid.NewString()
	log := logger.With("run_id", runID)

	frameStore, err := newMinioStore(cfg, cfg.MinIOBucket)
	if err != nil {
		return err
	}
	if err := frameStore.EnsureBucket(ctx); err != nil {
		return err
	}

	videoPath := runVideo
	if runVideoKey != "" {
		videoPath, err = downloadVideo(ctx, cfg, runVideoKey)
		if err != nil {
			return err
		}
		log.Info("Downloaded video", "key", runVideoKey, "path", videoPath)
	}

	name := videoName(videoPath)
	frameDir := filepath.Join(cfg.OutputDir, name)

	captioner, embedder, err := newProviders(cfg)
	if err != nil {
		return err
	}
	embedSvc := embeddings.NewService(embedder, cfg.MaxWorkers, 0)
	defer embedSvc.Close()

	det := detector.New(detector.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Threshold:   cfg.Threshold,
		MinSceneLen: cfg.MinSceneLen,
	}, log)
	ext := extractor.New(extractor.Options{
		FFmpegPath: cfg.FFmpegPath,
		OutputDir:  frameDir,
	}, log)
	ann := analyzer.NewAnnotator(frameStore, captioner, embedSvc, analyzer.AnnotatorOptions{
		KeyPrefix:   storage.ObjectKey(cfg.KeyPrefix, name),
		CallTimeout: cfg.CallTimeout,
		MaxAttempts: cfg.MaxAttempts,
	}, log)
	proc := analyzer.NewProcessor(det, ext, ann, storage.NewFileStorage(frameDir, log), analyzer.ProcessorOptions{
		MaxWorkers:     cfg.MaxWorkers,
		EmbeddingModel: embedSvc.Model(),
	}, log)

	report := models.RunReport{
		RunID:          runID,
		Video:          videoPath,
		CaptionModel:   captioner.Model(),
		EmbeddingModel: embedSvc.Model(),
		Threshold:      det.Threshold(),
		StartedAt:      time.Now().UTC(),
	}

	log.Info("Processing video", "video", videoPath, "threshold", det.Threshold(), "max_workers", cfg.MaxWorkers)
	result, err := proc.ProcessVideo(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("process video: %w", err)
	}
	report.Scenes = result.Scenes
	report.Frames = result.Index.Records()
	report.Failures = result.Failures

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d of %d key frames from %d scenes\n", result.Index.Len(), len(result.Frames), len(result.Scenes))

	for _, q := range runQueries {
		results, err := search(ctx, result.Index, embedSvc, q, cfg.TopN)
		if err != nil {
			log.Error("Search failed", "query", q, "error", err)
			continue
		}
		printResults(out, q, results)
		report.Queries = append(report.Queries, models.QueryResult{Query: q, Results: results})
	}

	if runInteractive {
		answered := interactiveSearch(ctx, cmd.InOrStdin(), out, result.Index, embedSvc, cfg.TopN)
		report.Queries = append(report.Queries, answered...)
	}

	report.FinishedAt = time.Now().UTC()
	reportPath, err := storage.WriteReport(frameDir, report)
	if err != nil {
		return err
	}
	log.Info("Run complete",
		"scenes", len(result.Scenes),
		"indexed", result.Index.Len(),
		"failed", len(result.Failures),
		"report", reportPath,
	)
	return nil
}

// downloadVideo fetches key from the video bucket into the output directory.
func downloadVideo(ctx context.Context, c *config.Config, key string) (string, error) {
	videoStore, err := newMinioStore(c, c.MinIOVideoBucket)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	dest := filepath.Join(c.OutputDir, path.Base(key))
	if err := videoStore.Download(ctx, key, dest); err != nil {
		return "", err
	}
	return dest, nil
}
