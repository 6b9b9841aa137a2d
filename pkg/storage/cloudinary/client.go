package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/enums"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.cloudinary.com/v1_1"
	pingTimeout    = 5 * time.Second
)

// UploadResult describes a durably stored object.
type UploadResult struct {
	PublicID  string
	SecureURL string
	Kind      enums.MediaKind
	Format    string
	SizeBytes int64
}

// Client is a signed HTTP client for the Cloudinary upload API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cloudName  string
	apiKey     string
	apiSecret  string
	now        func() time.Time
}

// Pinger is the health surface exposed to readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a client from config and verifies credentials with a ping.
func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	client, err := newClient(cfg, defaultBaseURL)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "storage client initialized")
	}

	return client, nil
}

func newClient(cfg config.StorageConfig, baseURL string) (*Client, error) {
	if cfg.CloudName == "" {
		return nil, errors.New("storage cloud name is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("storage api credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cloudName:  cfg.CloudName,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		now:        time.Now,
	}, nil
}

// Upload stores the file bytes under the given folder and returns the
// stored object's identifiers. The object kind is derived from the
// response's resource_type.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, folder string) (*UploadResult, error) {
	if c == nil {
		return nil, errors.New("storage client not initialized")
	}
	if len(data) == 0 {
		return nil, errors.New("upload payload is empty")
	}

	params := map[string]string{
		"timestamp":     strconv.FormatInt(c.now().Unix(), 10),
		"folder":        folder,
		"resource_type": "auto",
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := writer.WriteField("api_key", c.apiKey); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if err := writer.WriteField("signature", c.sign(params)); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/auto/upload", c.baseURL, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage upload request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("upload", resp)
	}

	var payload struct {
		PublicID     string `json:"public_id"`
		SecureURL    string `json:"secure_url"`
		ResourceType string `json:"resource_type"`
		Format       string `json:"format"`
		Bytes        int64  `json:"bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if payload.PublicID == "" || payload.SecureURL == "" {
		return nil, errors.New("upload response missing object identifiers")
	}

	kind, err := kindFromResourceType(payload.ResourceType)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		PublicID:  payload.PublicID,
		SecureURL: payload.SecureURL,
		Kind:      kind,
		Format:    payload.Format,
		SizeBytes: payload.Bytes,
	}, nil
}

// Destroy removes a stored object. Removal of an already-deleted object
// reports success; the API answers "not found" for those and we treat it
// as settled.
func (c *Client) Destroy(ctx context.Context, publicID string, kind enums.MediaKind) error {
	if c == nil {
		return errors.New("storage client not initialized")
	}
	if publicID == "" {
		return errors.New("public id is required")
	}

	resourceType := "image"
	if kind == enums.MediaKindVideo {
		resourceType = "video"
	}

	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("api_key", c.apiKey)
	form.Set("signature", c.sign(params))

	endpoint := fmt.Sprintf("%s/%s/%s/destroy", c.baseURL, url.PathEscape(c.cloudName), resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage destroy request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError("destroy", resp)
	}

	var payload struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding destroy response: %w", err)
	}
	if payload.Result != "ok" && payload.Result != "not found" {
		return fmt.Errorf("storage destroy returned %q", payload.Result)
	}
	return nil
}

// Ping verifies credentials against the admin ping endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("storage client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/ping", c.baseURL, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError("ping", resp)
	}
	return nil
}

// sign computes the request signature: sorted params joined with '&',
// concatenated with the api secret, hashed with SHA-1.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

func kindFromResourceType(resourceType string) (enums.MediaKind, error) {
	switch resourceType {
	case "image":
		return enums.MediaKindImage, nil
	case "video":
		return enums.MediaKindVideo, nil
	default:
		return "", fmt.Errorf("unsupported resource type %q", resourceType)
	}
}

func responseError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if len(b) > 0 {
		return fmt.Errorf("storage %s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("storage %s failed: %s", op, resp.Status)
}
