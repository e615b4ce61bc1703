// Package client provides an HTTP client for the Review Sift API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client is an HTTP client for the Review Sift API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means no limit.
	MaxIdleConns int

	// MaxConnsPerHost limits the total number of connections per host.
	// Zero means no limit.
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         60 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost / 5,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// ClassifyResult is the response to a classify request.
type ClassifyResult struct {
	Label       string             `json:"label"`
	LabelIndex  int                `json:"label_index"`
	DisplayName string             `json:"display_name"`
	Confidences map[string]float64 `json:"confidences"`
	Model       string             `json:"model"`
	Cached      bool               `json:"cached"`
	DurationMs  int64              `json:"duration_ms"`
}

// LabelInfo describes one classification label.
type LabelInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// LabelResult is the response to a dataset labelling upload.
type LabelResult struct {
	DatasetID string         `json:"dataset_id,omitempty"`
	Filename  string         `json:"filename"`
	Total     int            `json:"total"`
	Labelled  int            `json:"labelled"`
	Counts    map[string]int `json:"counts"`
	CSV       string         `json:"csv"`
}

// Dataset describes a stored labelled dataset.
type Dataset struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Model     string         `json:"model"`
	Rows      int            `json:"rows"`
	Labelled  int            `json:"labelled"`
	Counts    map[string]int `json:"counts"`
	SizeBytes int64          `json:"size_bytes"`
	CreatedAt time.Time      `json:"created_at"`
}

// Settings mirrors the server's runtime settings.
type Settings struct {
	TextColumn      string    `json:"text_column"`
	LabelColumn     string    `json:"label_column"`
	BatchSize       int       `json:"batch_size"`
	Workers         int       `json:"workers"`
	MaxUploadMB     int       `json:"max_upload_mb"`
	CacheEnabled    bool      `json:"cache_enabled"`
	CacheTTLSeconds int       `json:"cache_ttl_seconds"`
	RetainResults   bool      `json:"retain_results"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Device string `json:"device,omitempty"`
}

// APIError is an API error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ready checks readiness, including model health.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/readyz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Classify classifies a single review text.
func (c *Client) Classify(ctx context.Context, text string) (*ClassifyResult, error) {
	req := map[string]string{"text": text}
	var result ClassifyResult
	if err := c.post(ctx, "/v1/classify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Labels returns the classification label set.
func (c *Client) Labels(ctx context.Context) ([]LabelInfo, error) {
	var resp struct {
		Labels []LabelInfo `json:"labels"`
	}
	if err := c.get(ctx, "/v1/labels", &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// LabelDataset uploads a CSV for labelling. The text column name is
// optional; the server falls back to its runtime settings.
func (c *Client) LabelDataset(ctx context.Context, filename string, csv io.Reader, textColumn string) (*LabelResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, csv); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if textColumn != "" {
		if err := mw.WriteField("text_col", textColumn); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/datasets/label", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var result LabelResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDatasets returns all stored labelled datasets.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var resp struct {
		Datasets []Dataset `json:"datasets"`
	}
	if err := c.get(ctx, "/v1/datasets", &resp); err != nil {
		return nil, err
	}
	return resp.Datasets, nil
}

// GetDataset returns a stored dataset's metadata.
func (c *Client) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	var ds Dataset
	if err := c.get(ctx, "/v1/datasets/"+id, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DownloadDataset streams a stored dataset's labelled CSV. The caller
// must close the reader.
func (c *Client) DownloadDataset(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/datasets/"+id+"/download", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, decodeError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// DeleteDataset removes a stored dataset.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	return c.delete(ctx, "/v1/datasets/"+id)
}

// GetSettings returns the server's runtime settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.get(ctx, "/v1/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings applies a partial settings update. Only the fields
// present in the map change.
func (c *Client) UpdateSettings(ctx context.Context, fields map[string]interface{}) (*Settings, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/v1/settings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var s Settings
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, nil)
}

// envelope is the data/meta wrapper the server puts around /v1 JSON
// responses.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// do executes a request, unwrapping the data/meta envelope when present.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}

	if result == nil || len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return &APIError{Status: status, Code: fmt.Sprintf("HTTP_%d", status), Message: string(bytes.TrimSpace(body))}
	}
	apiErr.Status = status
	return &apiErr
}
