package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/artmap/internal/config"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Client computes embeddings through an embedding server that runs the
// backbone and returns pooled features.
type Client struct {
	baseURL  string
	backbone config.Backbone
	client   *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a new embedding client. A positive requestsPerSecond
// throttles calls to the server.
func NewClient(baseURL string, backbone config.Backbone, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		backbone: backbone,
		client:   &http.Client{},
		limiter:  limiter,
	}
}

// embeddingResponse represents the response from the embedding server
type embeddingResponse struct {
	Dim        int       `json:"dim"`
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Pretrained string    `json:"pretrained"`
}

func (c *Client) Backbone() config.Backbone {
	return c.backbone
}

// Extract reads the image, shrinks it to the backbone input size and asks the
// server for its embedding.
func (c *Client) Extract(ctx context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	data, err = ShrinkForUpload(data, c.backbone.InputSize)
	if err != nil {
		return nil, err
	}
	return c.ComputeEmbedding(ctx, filepath.Base(imagePath), data)
}

// ComputeEmbedding posts encoded image data to /embed/image.
func (c *Client) ComputeEmbedding(ctx context.Context, filename string, imageData []byte) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/embed/image", filename, imageData)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if err := checkDim(embResp.Embedding, c.backbone); err != nil {
		return nil, err
	}
	return embResp.Embedding, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
// The part carries the backbone name so the server can select the model.
func (c *Client) postMultipartImage(ctx context.Context, endpoint, filename string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if c.backbone.Name != "" {
		if err := writer.WriteField("model", c.backbone.Name); err != nil {
			return nil, fmt.Errorf("failed to write model field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
