package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/himanishpuri/tunebot/pkg/utils"
)

const defaultTranscodeTimeout = 2 * time.Minute

// FFmpeg re-encodes downloads with the ffmpeg executable.
type FFmpeg struct {
	Executable string
	Bitrate    string // e.g. "192k"
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Executable: "ffmpeg", Bitrate: "192k"}
}

// TranscodeMP3 writes inputPath as an MP3 file at outputPath. The input is
// left in place; a partial output never survives a failure.
func (f *FFmpeg) TranscodeMP3(ctx context.Context, inputPath, outputPath string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTranscodeTimeout)
		defer cancel()
	}

	tmpPath := outputPath + ".tmp.mp3"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		f.Executable,
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", f.Bitrate,
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	return utils.MoveFile(tmpPath, outputPath)
}
