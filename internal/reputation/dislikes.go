// Package reputation enriches fetched items with community vote counts.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/himanishpuri/tunebot/pkg/logger"
)

const (
	DefaultBaseURL = "https://returnyoutubedislikeapi.com/votes"
	DefaultTimeout = 3 * time.Second
)

type votesResponse struct {
	Dislikes *int64 `json:"dislikes"`
}

// Client looks up dislike counts. Every failure yields nil.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Interface
}

func New(baseURL string, timeout time.Duration, log logger.Interface) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) Dislikes(ctx context.Context, videoID string) *int64 {
	if videoID == "" {
		return nil
	}
	n, err := c.fetch(ctx, videoID)
	if err != nil {
		c.log.Debugf("dislikes for %s unavailable: %v", videoID, err)
		return nil
	}
	return n
}

func (c *Client) fetch(ctx context.Context, videoID string) (*int64, error) {
	u := c.baseURL + "?videoId=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body votesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding votes: %w", err)
	}
	return body.Dislikes, nil
}
