package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTranscodeMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "abc.webm")
	if err := os.WriteFile(in, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "abc.mp3")

	f := &FFmpeg{Executable: filepath.Join(dir, "no-such-ffmpeg"), Bitrate: "128k"}
	if err := f.TranscodeMP3(context.Background(), in, out); err == nil {
		t.Fatal("Expected error for missing executable")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "abc.webm" {
		t.Errorf("Expected only the input to remain, got %d entries", len(entries))
	}
}
