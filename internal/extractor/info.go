package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
)

// ytInfo holds the fields of the tool's JSON output that are used here.
type ytInfo struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Uploader       string   `json:"uploader"`
	Channel        string   `json:"channel"`
	Artist         string   `json:"artist"`
	Duration       float64  `json:"duration"`
	UploadDate     string   `json:"upload_date"`
	ViewCount      *int64   `json:"view_count"`
	LikeCount      *int64   `json:"like_count"`
	Filesize       int64    `json:"filesize"`
	FilesizeApprox int64    `json:"filesize_approx"`
	WebpageURL     string   `json:"webpage_url"`
	URL            string   `json:"url"`
	Entries        []ytInfo `json:"entries"`
}

func parseInfo(data []byte) (*ytInfo, error) {
	var info ytInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed parsing yt-dlp JSON: %w", err)
	}
	return &info, nil
}

// lastJSONLine returns the final JSON object in output that may also carry
// progress lines.
func lastJSONLine(output string) []byte {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "{") {
			return []byte(line)
		}
	}
	return []byte(output)
}

func (i *ytInfo) uploader() string {
	switch {
	case strings.TrimSpace(i.Uploader) != "":
		return i.Uploader
	case strings.TrimSpace(i.Channel) != "":
		return i.Channel
	default:
		return i.Artist
	}
}

func (i *ytInfo) pageURL() string {
	if i.WebpageURL != "" {
		return i.WebpageURL
	}
	if utils.IsURL(i.URL) {
		return i.URL
	}
	if i.ID != "" {
		return utils.WatchURL(i.ID)
	}
	return ""
}

func (i *ytInfo) metadata() *Metadata {
	size := i.Filesize
	if size == 0 {
		size = i.FilesizeApprox
	}
	return &Metadata{
		ExternalID:    i.ID,
		Title:         i.Title,
		Uploader:      i.uploader(),
		Duration:      i.Duration,
		EstimatedSize: size,
	}
}

// candidates converts a flat search playlist, dropping entries without an id.
func (i *ytInfo) candidates(limit int) []models.MediaCandidate {
	out := make([]models.MediaCandidate, 0, len(i.Entries))
	for _, e := range i.Entries {
		if e.ID == "" {
			continue
		}
		out = append(out, models.MediaCandidate{
			ExternalID: e.ID,
			Title:      e.Title,
			Duration:   e.Duration,
			URL:        e.pageURL(),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (i *ytInfo) download(audioPath, thumbnailPath string) *Download {
	return &Download{
		ExternalID:    i.ID,
		Title:         i.Title,
		Uploader:      i.uploader(),
		Duration:      i.Duration,
		UploadDate:    i.UploadDate,
		ViewCount:     i.ViewCount,
		LikeCount:     i.LikeCount,
		URL:           i.pageURL(),
		AudioPath:     audioPath,
		ThumbnailPath: thumbnailPath,
	}
}
