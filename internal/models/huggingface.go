package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/sethvargo/go-retry"
)

// HubClient talks to a HuggingFace-compatible model hub.
type HubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint64
}

// HubConfig configures the hub client.
type HubConfig struct {
	// Endpoint is the hub base URL.
	Endpoint string

	// Token is an optional access token for gated repositories.
	Token string

	// Timeout is the per-request timeout for metadata calls. Downloads
	// use the request context instead.
	Timeout time.Duration
}

// NewHubClient creates a hub client. Zero config values fall back to
// the public hub with a 30s metadata timeout.
func NewHubClient(cfg HubConfig) *HubClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://huggingface.co"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HubClient{
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: 3,
	}
}

// HubModelInfo represents a model from the hub API.
type HubModelInfo struct {
	ID           string    `json:"id"`
	ModelID      string    `json:"modelId"`
	Author       string    `json:"author"`
	SHA          string    `json:"sha"`
	Downloads    int64     `json:"downloads"`
	Likes        int       `json:"likes"`
	Tags         []string  `json:"tags"`
	PipelineTag  string    `json:"pipeline_tag"`
	LibraryName  string    `json:"library_name"`
	Private      bool      `json:"private"`
	LastModified string    `json:"lastModified"`
	Siblings     []HubFile `json:"siblings,omitempty"`
}

// HubFile represents a file in a hub model repository.
type HubFile struct {
	RFilename string `json:"rfilename"`
	Size      int64  `json:"size,omitempty"`
	LFS       *struct {
		Size int64 `json:"size"`
	} `json:"lfs,omitempty"`
}

// HubTreeEntry represents a file or directory in the model tree.
type HubTreeEntry struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
	OID  string `json:"oid"`
	LFS  *struct {
		OID  string `json:"oid"`
		Size int64  `json:"size"`
	} `json:"lfs,omitempty"`
}

// ActualSize returns the LFS size when the entry is an LFS pointer.
func (e *HubTreeEntry) ActualSize() int64 {
	if e.LFS != nil && e.LFS.Size > 0 {
		return e.LFS.Size
	}
	return e.Size
}

// HasONNX checks if the model repository carries ONNX files.
func (m *HubModelInfo) HasONNX() bool {
	for _, tag := range m.Tags {
		if tag == "onnx" {
			return true
		}
	}
	return false
}

// GetModelInfo gets detailed information about a specific model.
func (c *HubClient) GetModelInfo(ctx context.Context, modelID string) (*HubModelInfo, error) {
	apiURL := fmt.Sprintf("%s/api/models/%s", c.baseURL, modelID)

	var model HubModelInfo
	err := c.withRetry(ctx, func(ctx context.Context) error {
		resp, err := c.doGet(ctx, apiURL)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("model not found: %s", modelID)
		}
		if resp.StatusCode != http.StatusOK {
			return retryableStatus(resp.StatusCode, "model info")
		}

		return json.NewDecoder(resp.Body).Decode(&model)
	})
	if err != nil {
		return nil, err
	}

	return &model, nil
}

// ListModelFiles lists files in a model repository, optionally under a
// subdirectory.
func (c *HubClient) ListModelFiles(ctx context.Context, modelID, path string) ([]HubTreeEntry, error) {
	apiURL := fmt.Sprintf("%s/api/models/%s/tree/main", c.baseURL, modelID)
	if path != "" {
		apiURL = fmt.Sprintf("%s/%s", apiURL, path)
	}

	var entries []HubTreeEntry
	err := c.withRetry(ctx, func(ctx context.Context) error {
		resp, err := c.doGet(ctx, apiURL)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("model not found: %s", modelID)
		}
		if resp.StatusCode != http.StatusOK {
			return retryableStatus(resp.StatusCode, "file listing")
		}

		return json.NewDecoder(resp.Body).Decode(&entries)
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// FindWeightsFile locates the ONNX weights in a repository, checking
// the onnx/ subdirectory first, then the root. Returns the repository
// path and size.
func (c *HubClient) FindWeightsFile(ctx context.Context, modelID string) (string, int64, error) {
	entries, err := c.ListModelFiles(ctx, modelID, "onnx")
	if err == nil {
		for _, entry := range entries {
			if entry.Type == "file" && strings.HasSuffix(entry.Path, FileWeights) {
				return entry.Path, entry.ActualSize(), nil
			}
		}
	}

	entries, err = c.ListModelFiles(ctx, modelID, "")
	if err != nil {
		return "", 0, fmt.Errorf("failed to list files: %w", err)
	}

	for _, entry := range entries {
		if entry.Type == "file" && entry.Path == FileWeights {
			return entry.Path, entry.ActualSize(), nil
		}
	}

	return "", 0, fmt.Errorf("no ONNX weights found in model %s", modelID)
}

// FileDownloadURL returns the download URL for a file in a repository.
func (c *HubClient) FileDownloadURL(modelID, filePath string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.baseURL, modelID, filePath)
}

// DownloadFile downloads one repository file into w. The progress
// callback, when set, receives cumulative byte counts; total is -1 when
// the hub does not report a length.
func (c *HubClient) DownloadFile(ctx context.Context, modelID, filePath string, w io.Writer, onProgress func(downloaded, total int64)) (int64, error) {
	downloadURL := c.FileDownloadURL(modelID, filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	// Downloads bypass the metadata client: artifact files can take far
	// longer than its timeout.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", filePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download of %s failed with status %d", filePath, resp.StatusCode)
	}

	total := resp.ContentLength
	var downloaded int64

	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			if werr != nil {
				return downloaded, fmt.Errorf("failed to write: %w", werr)
			}
			downloaded += int64(written)
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return downloaded, fmt.Errorf("failed to read: %w", err)
		}
	}

	return downloaded, nil
}

func (c *HubClient) doGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.httpClient.Do(req)
}

func (c *HubClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// withRetry runs fn under exponential backoff. Network failures and
// 5xx/429 responses retry; everything else fails immediately.
func (c *HubClient) withRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.NewExponential(500 * time.Millisecond)
	return retry.Do(ctx, retry.WithMaxRetries(c.maxRetries, b), fn)
}

// retryableStatus wraps a bad status into an error, retryable when the
// hub may recover.
func retryableStatus(status int, op string) error {
	err := fmt.Errorf("%s request failed with status %d", op, status)
	if status >= 500 || status == http.StatusTooManyRequests {
		return retry.RetryableError(err)
	}
	return err
}
