// Package backend is the HTTP client for the inference backend capability:
// list models and invoke an endpoint with an opaque JSON payload.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBodyBytes bounds how much of an error body is kept for the
	// error message.
	maxErrorBodyBytes = 512
)

// Client talks to one backend base URL. Safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// NewClient constructs a Client. A non-positive timeout selects the
// default per-call deadline.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// ListModels fetches the backend's model names from GET /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError{status: resp.StatusCode, body: readErrorBody(resp.Body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	var names []string
	for _, m := range gjson.GetBytes(body, "models.#.name").Array() {
		if n := m.String(); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// Invoke posts the payload to {base}{endpoint} and returns the response
// body. The call is bounded by the client's per-call timeout on top of any
// deadline already carried by ctx.
func (c *Client) Invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError{status: resp.StatusCode, body: readErrorBody(resp.Body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	return body, nil
}

// Healthy probes backend reachability with a short deadline.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
