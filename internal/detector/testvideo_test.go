package detector

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestVideo renders one second each of black, white and blue at
// 25 fps into dir and returns the file path.
func writeTestVideo(t *testing.T, dir string) string {
	t.Helper()

	out := filepath.Join(dir, "three_scenes.avi")
	cmd := exec.Command("ffmpeg", "-v", "error", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=160x90:r=25:d=1",
		"-f", "lavfi", "-i", "color=c=white:s=160x90:r=25:d=1",
		"-f", "lavfi", "-i", "color=c=blue:s=160x90:r=25:d=1",
		"-filter_complex", "[0:v][1:v][2:v]concat=n=3:v=1:a=0",
		"-c:v", "mjpeg", "-q:v", "2",
		out,
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
	return out
}
