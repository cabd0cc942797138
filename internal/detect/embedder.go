package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultEmbedderURL = "http://localhost:8000"

// EmbedderClient computes face embeddings using the embedding service.
// Safe for concurrent use; the service returns L2-normalized vectors and is
// deterministic for identical pixel input.
type EmbedderClient struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewEmbedderClient creates an embedder client. dim is the expected
// embedding dimension; responses with a different dimension are rejected.
func NewEmbedderClient(baseURL string, dim int) *EmbedderClient {
	if baseURL == "" {
		baseURL = defaultEmbedderURL
	}
	return &EmbedderClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// embedResponse represents the response from the embedding service.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// EmbedFace computes the embedding for a face crop.
func (c *EmbedderClient) EmbedFace(ctx context.Context, crop []byte) ([]float32, error) {
	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/embed/face", crop, nil)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	if c.dim > 0 && len(resp.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(resp.Embedding), c.dim)
	}
	return resp.Embedding, nil
}

// Prewarm asks the service to load its model so the first real embedding
// call does not pay the startup latency. Failures are reported but callers
// usually treat them as non-fatal.
func (c *EmbedderClient) Prewarm(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("warmup failed (status %d)", resp.StatusCode)
	}
	return nil
}
