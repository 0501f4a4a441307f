// Package classifier talks to the plant identification provider and
// normalizes its response shapes into one internal prediction list.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"plant-monitor-backend/config"
)

// Classifier identifies the plant on an image reachable at a URL and
// returns the provider's raw JSON response.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) (json.RawMessage, error)
	Provider() string
}

// HTTPClassifier calls a JSON-over-HTTP identification provider.
type HTTPClassifier struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPClassifier creates a classifier from configuration.
func NewHTTPClassifier(cfg *config.ClassifierConfig) *HTTPClassifier {
	return &HTTPClassifier{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Provider returns the identifier recorded with cached inference results.
func (c *HTTPClassifier) Provider() string {
	return "http"
}

// Classify posts the image URL to the provider and returns the raw body.
func (c *HTTPClassifier) Classify(ctx context.Context, imageURL string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{"image_url": imageURL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
