package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
)

func TestParseSearchPlaylist(t *testing.T) {
	data := []byte(`{
		"_type": "playlist",
		"entries": [
			{"id": "aaa", "title": "First", "duration": 215.0, "url": "https://www.youtube.com/watch?v=aaa"},
			{"id": "", "title": "Broken"},
			{"id": "bbb", "title": "Second", "duration": null},
			{"id": "ccc", "title": "Third", "duration": 60}
		]
	}`)

	info, err := parseInfo(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := info.candidates(2)
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ExternalID != "aaa" || got[0].Duration != 215 {
		t.Errorf("Unexpected first candidate %+v", got[0])
	}
	if got[1].URL != "https://www.youtube.com/watch?v=bbb" {
		t.Errorf("Expected watch URL built from id, got %q", got[1].URL)
	}
	if got[1].Duration != 0 {
		t.Errorf("Expected missing duration as 0, got %v", got[1].Duration)
	}
}

func TestParseMetadata(t *testing.T) {
	data := []byte(`{"id": "xyz", "title": "Song", "channel": "Chan", "duration": 1200, "filesize_approx": 5242880}`)

	info, err := parseInfo(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	meta := info.metadata()
	if meta.Uploader != "Chan" {
		t.Errorf("Expected channel fallback for uploader, got %q", meta.Uploader)
	}
	if meta.Duration != 1200 {
		t.Errorf("Expected duration 1200, got %v", meta.Duration)
	}
	if meta.EstimatedSize != 5242880 {
		t.Errorf("Expected approximate size, got %d", meta.EstimatedSize)
	}
}

func TestParseInfoInvalid(t *testing.T) {
	if _, err := parseInfo([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLastJSONLine(t *testing.T) {
	out := "[download] 100%\n{\"id\": \"a\"}\n"
	if got := string(lastJSONLine(out)); got != `{"id": "a"}` {
		t.Errorf("Unexpected JSON line %q", got)
	}
}

func TestDownloadFromInfo(t *testing.T) {
	views := int64(10)
	info := &ytInfo{ID: "id1", Title: "T", Uploader: "U", UploadDate: "20240102", ViewCount: &views, WebpageURL: "https://example.com/v"}
	d := info.download("/tmp/x.mp3", "")
	if d.URL != "https://example.com/v" || d.AudioPath != "/tmp/x.mp3" || *d.ViewCount != 10 {
		t.Errorf("Unexpected download %+v", d)
	}
}

func TestLocateFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "abc")
	for _, name := range []string{"abc.webm", "abc.webp", "abc.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	audio, thumb := LocateFiles(base)
	if audio != base+".webm" {
		t.Errorf("Expected webm audio, got %q", audio)
	}
	if thumb != base+".webp" {
		t.Errorf("Expected webp thumbnail, got %q", thumb)
	}

	audio, thumb = LocateFiles(filepath.Join(dir, "missing"))
	if audio != "" || thumb != "" {
		t.Errorf("Expected nothing for unknown base, got %q %q", audio, thumb)
	}
}

func TestMetadataFromVideo(t *testing.T) {
	v := &youtube.Video{
		ID:       "vid",
		Title:    "Title",
		Author:   "Author",
		Duration: 3*time.Minute + 30*time.Second,
		Formats: youtube.FormatList{
			{ItagNo: 18, AudioChannels: 0, Bitrate: 500000, ContentLength: 99999999},
			{ItagNo: 140, AudioChannels: 2, Bitrate: 128000, ContentLength: 3000000},
			{ItagNo: 251, AudioChannels: 2, Bitrate: 160000, ContentLength: 3500000},
		},
	}
	meta := metadataFromVideo(v)
	if meta.Duration != 210 {
		t.Errorf("Expected 210s, got %v", meta.Duration)
	}
	if meta.Uploader != "Author" {
		t.Errorf("Expected author as uploader, got %q", meta.Uploader)
	}
	if meta.EstimatedSize != 3500000 {
		t.Errorf("Expected size of best audio format, got %d", meta.EstimatedSize)
	}
}

func TestResolveExecutableExplicitPath(t *testing.T) {
	got, err := ResolveExecutable(context.Background(), "/opt/yt-dlp", false)
	if err != nil || got != "/opt/yt-dlp" {
		t.Errorf("Expected explicit path, got %q, %v", got, err)
	}
}
