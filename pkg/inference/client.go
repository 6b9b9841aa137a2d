package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

// TimelineEntry is one emotion observation at a video offset in seconds.
type TimelineEntry struct {
	Timestamp float64 `json:"timestamp"`
	Emotion   string  `json:"emotion"`
}

// ProbeCache stores the last health probe outcome so repeated uploads do
// not hammer the inference server.
type ProbeCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Client talks to the external emotion-inference server.
type Client struct {
	httpClient      *http.Client
	videoHTTPClient *http.Client
	baseURL         string
	probeTimeout    time.Duration
	probeCacheTTL   time.Duration
	cache           ProbeCache
	cacheKey        string
	logg            *logger.Logger
}

// NewClient builds an inference client from config. cache may be nil, in
// which case every Healthy call probes the server.
func NewClient(cfg config.AIConfig, cache ProbeCache, cacheKey string, logg *logger.Logger) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("inference server url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	videoTimeout := cfg.VideoTimeout
	if videoTimeout <= 0 {
		videoTimeout = 2 * timeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}

	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		videoHTTPClient: &http.Client{Timeout: videoTimeout},
		baseURL:         strings.TrimRight(cfg.ServerURL, "/"),
		probeTimeout:    probeTimeout,
		probeCacheTTL:   cfg.ProbeCacheTTL,
		cache:           cache,
		cacheKey:        cacheKey,
		logg:            logg,
	}, nil
}

// Healthy reports whether the inference server answered its root probe.
// The outcome is cached; probe failures are logged, never returned.
func (c *Client) Healthy(ctx context.Context) bool {
	if c == nil {
		return false
	}

	if c.cache != nil && c.cacheKey != "" {
		if cached, err := c.cache.Get(ctx, c.cacheKey); err == nil {
			return cached == "up"
		}
	}

	up := c.probe(ctx)

	if c.cache != nil && c.cacheKey != "" && c.probeCacheTTL > 0 {
		status := "down"
		if up {
			status = "up"
		}
		if err := c.cache.Set(ctx, c.cacheKey, status, c.probeCacheTTL); err != nil && c.logg != nil {
			c.logg.Warn(ctx, "caching inference probe result failed")
		}
	}

	return up
}

func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(ctx, "inference server probe failed")
		}
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// InferImage submits image bytes and returns the predicted emotion.
func (c *Client) InferImage(ctx context.Context, filename string, data []byte) (string, error) {
	if c == nil {
		return "", errors.New("inference client not initialized")
	}

	resp, err := c.postFile(ctx, c.httpClient, "/predict/image", filename, data)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("image prediction", resp)
	}

	var payload struct {
		Emotion string `json:"emotion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding image prediction: %w", err)
	}
	if payload.Emotion == "" {
		return "", errors.New("image prediction missing emotion")
	}
	return payload.Emotion, nil
}

// InferVideo submits video bytes and returns the emotion timeline. The
// server reports emotion changes only, with offsets in seconds.
func (c *Client) InferVideo(ctx context.Context, filename string, data []byte) ([]TimelineEntry, error) {
	if c == nil {
		return nil, errors.New("inference client not initialized")
	}

	resp, err := c.postFile(ctx, c.videoHTTPClient, "/predict/video", filename, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("video prediction", resp)
	}

	var timeline []TimelineEntry
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return nil, fmt.Errorf("decoding video prediction: %w", err)
	}
	for _, entry := range timeline {
		if entry.Emotion == "" {
			return nil, errors.New("video prediction contains empty emotion")
		}
	}
	return timeline, nil
}

func (c *Client) postFile(ctx context.Context, httpClient *http.Client, path, filename string, data []byte) (*http.Response, error) {
	if len(data) == 0 {
		return nil, errors.New("prediction payload is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building prediction form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("building prediction form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building prediction form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	return resp, nil
}

func responseError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("%s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("%s failed: %s", op, resp.Status)
}
