package remote

import (
	"context"
	"net/http"
	"strings"
)

// Summary is the lecture board content for one chunk.
type Summary struct {
	Resp   string   `json:"resp"`
	Images []string `json:"images"`
}

type summarizeResponse struct {
	Summary
	Error string `json:"error,omitempty"`
}

// Summarize turns a chunk prompt into a lecture summary.
func (c *Client) Summarize(ctx context.Context, text string) (Summary, error) {
	if strings.TrimSpace(text) == "" {
		return Summary{}, ErrEmptyText
	}

	var out summarizeResponse
	if err := c.post(ctx, c.cfg.SummarizeURL, map[string]string{"text": text}, &out); err != nil {
		return Summary{}, err
	}
	if out.Error != "" {
		return Summary{}, &APIError{Endpoint: c.cfg.SummarizeURL, Status: http.StatusOK, Message: out.Error}
	}
	if strings.TrimSpace(out.Resp) == "" {
		return Summary{}, ErrEmptyResponse
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	return out.Summary, nil
}

type doubtResponse struct {
	Resp   string `json:"resp"`
	Status int    `json:"status"`
}

// ClearDoubt answers query using contextText as grounding.
func (c *Client) ClearDoubt(ctx context.Context, query, contextText string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyText
	}

	body := map[string]string{"query": query, "context": contextText}
	var out doubtResponse
	if err := c.post(ctx, c.cfg.DoubtURL, body, &out); err != nil {
		return "", err
	}
	if out.Status != 0 && out.Status != http.StatusOK {
		return "", &APIError{Endpoint: c.cfg.DoubtURL, Status: out.Status, Message: out.Resp}
	}
	if strings.TrimSpace(out.Resp) == "" {
		return "", ErrEmptyResponse
	}
	return out.Resp, nil
}

// Video is one recommended video.
type Video struct {
	Topic     string `json:"topic"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
}

// Recommendations is the video service reply.
type Recommendations struct {
	Topics []string `json:"topics"`
	Videos []Video  `json:"videos"`
}

// RecommendVideos extracts topics from text and finds videos for them.
func (c *Client) RecommendVideos(ctx context.Context, text string) (Recommendations, error) {
	if strings.TrimSpace(text) == "" {
		return Recommendations{}, ErrEmptyText
	}

	var out Recommendations
	if err := c.post(ctx, c.cfg.VideosURL, map[string]string{"text": text}, &out); err != nil {
		return Recommendations{}, err
	}
	return out, nil
}
