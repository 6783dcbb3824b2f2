package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kozaktomas/library-sorter/internal/constants"
	"golang.org/x/sync/semaphore"
)

const defaultEmbeddingURL = "http://localhost:8000"

var (
	// ErrProviderUnavailable means the embedding server could not be reached or is not ready.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrComputeFailed means the server ran but produced no usable vector for the input.
	ErrComputeFailed = errors.New("embedding computation failed")
)

// Provider computes image feature vectors.
type Provider interface {
	// ComputeVector returns the feature vector for the image at path.
	ComputeVector(ctx context.Context, path string) ([]float32, error)

	// ComputeVectorsBatch returns one vector per path, in input order.
	// A result count that differs from the input count fails the whole batch.
	ComputeVectorsBatch(ctx context.Context, paths []string) ([][]float32, error)
}

// Client talks to the local CLIP embedding server.
type Client struct {
	baseURL      string
	client       *http.Client
	sem          *semaphore.Weighted
	maxRetries   uint64
	retryInitial time.Duration
	// upload sends file contents instead of paths
	upload bool
}

// NewClient creates a new embedding client limited to concurrency in-flight requests.
func NewClient(baseURL string, concurrency int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if concurrency <= 0 {
		concurrency = constants.EmbeddingConcurrency
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		sem:          semaphore.NewWeighted(int64(concurrency)),
		maxRetries:   constants.EmbeddingMaxRetries,
		retryInitial: 500 * time.Millisecond,
	}
}

// SetRetryPolicy overrides how often and how quickly unavailable-provider errors are retried.
func (c *Client) SetRetryPolicy(maxRetries int, initial time.Duration) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	c.maxRetries = uint64(maxRetries)
	c.retryInitial = initial
}

// SetUpload makes the client read images locally and upload their bytes, for
// an embedding server that cannot see the library paths.
func (c *Client) SetUpload(upload bool) {
	c.upload = upload
}

type pathRequest struct {
	Path string `json:"path"`
}

type pathsRequest struct {
	Paths []string `json:"paths"`
}

// embeddingResponse represents the single-image response from the embedding server
type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// embeddingsResponse represents the batch response from the embedding server
type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// HealthStatus is the embedding server health report.
type HealthStatus struct {
	Status          string `json:"status"`
	EmbedderReady   bool   `json:"embedder_fully_initialized"`
	EffectiveDevice string `json:"effective_device"`
	Details         string `json:"details,omitempty"`
}

// ComputeVector computes the embedding for an image path visible to the server.
func (c *Client) ComputeVector(ctx context.Context, path string) ([]float32, error) {
	if c.upload {
		return c.uploadFile(ctx, path)
	}
	var resp embeddingResponse
	if err := c.postJSON(ctx, "/get_image_embedding", pathRequest{Path: path}, &resp); err != nil {
		return nil, fmt.Errorf("embedding %s: %w", path, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding %s: %w: empty embedding returned", path, ErrComputeFailed)
	}
	return resp.Embedding, nil
}

// ComputeVectorsBatch computes embeddings for several paths in one request.
func (c *Client) ComputeVectorsBatch(ctx context.Context, paths []string) ([][]float32, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if c.upload {
		vecs := make([][]float32, len(paths))
		for i, path := range paths {
			vec, err := c.uploadFile(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("batch embedding: %w", err)
			}
			vecs[i] = vec
		}
		return vecs, nil
	}
	var resp embeddingsResponse
	if err := c.postJSON(ctx, "/get_image_embeddings_batch", pathsRequest{Paths: paths}, &resp); err != nil {
		return nil, fmt.Errorf("batch embedding: %w", err)
	}
	if len(resp.Embeddings) != len(paths) {
		return nil, fmt.Errorf("batch embedding: %w: got %d vectors for %d paths", ErrComputeFailed, len(resp.Embeddings), len(paths))
	}
	return resp.Embeddings, nil
}

// ComputeVectorFromBytes uploads the image data, for servers that cannot read the library path.
func (c *Client) ComputeVectorFromBytes(ctx context.Context, imageData []byte) ([]float32, error) {
	var body []byte
	err := c.withRetry(ctx, func() error {
		var err error
		body, err = c.postMultipartImage(ctx, "/get_image_embedding_upload", imageData)
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrComputeFailed, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrComputeFailed)
	}
	return resp.Embedding, nil
}

func (c *Client) uploadFile(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w: %v", path, ErrComputeFailed, err)
	}
	vec, err := c.ComputeVectorFromBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", path, err)
	}
	return vec, nil
}

// Health queries the server health endpoint. A server that answers but has not
// finished loading its model is reported as unavailable.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	if !status.EmbedderReady {
		return &status, fmt.Errorf("%w: embedder not initialized (%s)", ErrProviderUnavailable, status.Details)
	}
	return &status, nil
}

// postJSON posts a JSON body and decodes the JSON reply into out, retrying
// while the provider is unavailable.
func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var body []byte
	err = c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		body, err = c.do(req)
		return err
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrComputeFailed, err)
	}
	return nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// do sends the request under the concurrency limit and classifies failures.
// Transport errors and 503 map to ErrProviderUnavailable, other non-200 replies to ErrComputeFailed.
func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx := req.Context()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: request failed: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrComputeFailed, resp.StatusCode, string(body))
	}
}

// withRetry retries op with exponential backoff while it fails with ErrProviderUnavailable.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrProviderUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
