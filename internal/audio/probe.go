package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/tunebot/internal/apperr"
)

const defaultProbeTimeout = 5 * time.Second

type StreamInfo struct {
	Filename    string
	Title       string
	Artist      string
	Codec       string
	DurationSec float64
	SampleRate  int
	Channels    int
	Format      string
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func (p *ffprobeOutput) firstAudioStream() *ffprobeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// FFProbe inspects downloaded files with the ffprobe executable.
type FFProbe struct {
	Executable string
}

func NewFFProbe() *FFProbe {
	return &FFProbe{Executable: "ffprobe"}
}

// Probe fails with apperr.NoAudioStream when the file carries no audio.
func (f *FFProbe) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		f.Executable,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseProbe(out, path)
}

func parseProbe(out []byte, path string) (*StreamInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	stream := probe.firstAudioStream()
	if stream == nil {
		return nil, apperr.Newf(apperr.NoAudioStream, "no audio stream found in %s", filepath.Base(path))
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	sampleRate, _ := strconv.Atoi(stream.SampleRate)

	info := &StreamInfo{
		Filename:    filepath.Base(path),
		Codec:       stream.CodecName,
		DurationSec: duration,
		SampleRate:  sampleRate,
		Channels:    stream.Channels,
		Format:      probe.Format.Format,
	}
	if probe.Format.Tags != nil {
		info.Title = probe.Format.Tags["title"]
		info.Artist = probe.Format.Tags["artist"]
	}
	return info, nil
}
