package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdougie/framesearch/internal/detector"
)

var (
	detectVideo     string
	detectThreshold float64
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the scenes detected in a video",
	Long: `Run shot boundary detection only. No frames are extracted and no
external services are contacted.

Examples:
  framesearch detect --video clip.mp4
  framesearch detect --video clip.mp4 --threshold 20`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectVideo, "video", "", "path to a local video file")
	detectCmd.Flags().Float64Var(&detectThreshold, "threshold", detector.DefaultThreshold, "scene cut threshold")
	_ = detectCmd.MarkFlagRequired("video")
}

func runDetect(cmd *cobra.Command, _ []string) error {
	threshold := cfg.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = detectThreshold
	}

	det := detector.New(detector.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Threshold:   threshold,
		MinSceneLen: cfg.MinSceneLen,
	}, logger)

	scenes := det.DetectScenes(cmd.Context(), detectVideo)

	out := cmd.OutOrStdout()
	if len(scenes) == 0 {
		fmt.Fprintln(out, "No scene changes detected.")
		return nil
	}
	fmt.Fprintf(out, "Detected %d scenes (threshold %.1f):\n", len(scenes), det.Threshold())
	for _, s := range scenes {
		fmt.Fprintf(out, "%3d. frames %d-%d", s.Index, s.StartFrame, s.EndFrame)
		if s.EndTime > 0 {
			fmt.Fprintf(out, "  %.2fs-%.2fs", s.StartTime, s.EndTime)
		}
		fmt.Fprintln(out)
	}
	return nil
}
