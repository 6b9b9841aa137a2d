package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/emotrace/emotrace-backend/pkg/config"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

// RawFile is media content pulled from a remote URL, ready for the
// upload pipeline.
type RawFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Extractor resolves a page or direct-media URL into raw bytes.
type Extractor struct {
	httpClient *http.Client
	maxBytes   int64
	logg       *logger.Logger
}

var (
	ogMediaRe   = regexp.MustCompile(`<meta[^>]+property=["']og:(?:video|image)(?::secure_url|:url)?["'][^>]+content=["']([^"']+)["']`)
	ogContentRe = regexp.MustCompile(`<meta[^>]+content=["']([^"']+)["'][^>]+property=["']og:(?:video|image)(?::secure_url|:url)?["']`)
)

// NewExtractor builds an extractor honoring the configured timeout and
// upload size ceiling.
func NewExtractor(cfg config.UploadConfig, logg *logger.Logger) *Extractor {
	timeout := cfg.ExtractTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   cfg.MaxUploadBytes(),
		logg:       logg,
	}
}

// Extract downloads media from the given URL. Direct image/video
// responses are returned as-is; HTML pages are scraped for an Open Graph
// media tag and the referenced asset is downloaded instead.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*RawFile, error) {
	target, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, contentType, err := e.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	if isMediaContentType(contentType) {
		return &RawFile{
			Filename:    filenameFromURL(target),
			ContentType: contentType,
			Data:        body,
		}, nil
	}

	if !strings.HasPrefix(contentType, "text/html") {
		return nil, pkgerrors.New(pkgerrors.CodeExtraction,
			fmt.Sprintf("url answered with unsupported content type %q", contentType))
	}

	mediaURL := findOpenGraphMedia(string(body))
	if mediaURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeExtraction, "no media could be extracted from the url")
	}

	resolved, err := target.Parse(mediaURL)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeExtraction, "extracted media url is invalid")
	}

	if e.logg != nil {
		e.logg.Info(e.logg.WithField(ctx, "media_url", resolved.String()), "resolved media from page metadata")
	}

	mediaBody, mediaType, err := e.fetch(ctx, resolved.String())
	if err != nil {
		return nil, err
	}
	if !isMediaContentType(mediaType) {
		return nil, pkgerrors.New(pkgerrors.CodeExtraction,
			fmt.Sprintf("extracted media has unsupported content type %q", mediaType))
	}

	return &RawFile{
		Filename:    filenameFromURL(resolved),
		ContentType: mediaType,
		Data:        mediaBody,
	}, nil
}

func (e *Extractor) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeExtraction, err, "building extraction request")
	}
	req.Header.Set("Accept", "*/*")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeExtraction, err, "fetching url")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", pkgerrors.New(pkgerrors.CodeExtraction,
			fmt.Sprintf("url answered with status %d", resp.StatusCode))
	}

	limit := e.maxBytes
	if limit <= 0 {
		limit = 100 * 1024 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeExtraction, err, "reading url body")
	}
	if int64(len(body)) > limit {
		return nil, "", pkgerrors.New(pkgerrors.CodeExtraction, "remote media exceeds the upload size limit")
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return body, strings.TrimSpace(strings.ToLower(contentType)), nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url must be a valid http(s) address")
	}
	return parsed, nil
}

func isMediaContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

func findOpenGraphMedia(html string) string {
	if m := ogMediaRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	if m := ogContentRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

func filenameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "extracted-media"
	}
	return name
}
