package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// serviceTimeout bounds a single call to the external renderer.
const serviceTimeout = 15 * time.Second

// maxImageBytes caps the response body read from the render service.
const maxImageBytes = 10 << 20

// Client calls an external HTTP render service instead of rendering
// in-process. Used when the heavyweight font assets live with the service.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient returns a Client for the given render endpoint. token is sent as
// a bearer token on every request.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: serviceTimeout,
		},
	}
}

type renderRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Romaji    string `json:"romaji"`
}

// Render posts the order metadata to the render service and returns the PNG
// bytes. Non-2xx responses and timeouts surface as errors.
func (c *Client) Render(ctx context.Context, sessionID, name, romaji string) ([]byte, error) {
	body, err := json.Marshal(renderRequest{
		SessionID: sessionID,
		Name:      name,
		Romaji:    romaji,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render service call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}

	png, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("render service returned empty body")
	}
	return png, nil
}
