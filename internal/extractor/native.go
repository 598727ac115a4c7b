package extractor

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
)

// NativeResolver answers prechecks in-process from the YouTube player
// response, without spawning yt-dlp.
type NativeResolver struct {
	client *youtube.Client
}

func NewNativeResolver() *NativeResolver {
	return &NativeResolver{client: &youtube.Client{}}
}

func (n *NativeResolver) ResolveMetadata(ctx context.Context, url string) (*Metadata, error) {
	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}
	return metadataFromVideo(video), nil
}

// metadataFromVideo estimates size from the highest-bitrate audio format.
func metadataFromVideo(v *youtube.Video) *Metadata {
	meta := &Metadata{
		ExternalID: v.ID,
		Title:      v.Title,
		Uploader:   v.Author,
		Duration:   v.Duration.Seconds(),
	}

	formats := v.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return meta
	}
	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}
	meta.EstimatedSize = best.ContentLength
	return meta
}
