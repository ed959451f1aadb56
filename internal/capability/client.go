// File: internal/capability/client.go
package capability

import (
	"bytes"
	"context"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// SurfaceClient speaks the surface wire contract: every primitive is
// GET|POST <base>/<action> with JSON bodies. A non-2xx status or an {"error"}
// body is a surface failure.
type SurfaceClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// surfaceError is the failure envelope a surface may return with any status.
type surfaceError struct {
	Error string `json:"error"`
}

// ErrSurface marks any failure reported by or while reaching a surface.
var ErrSurface = errors.New("capability: surface failure")

// NewSurfaceClient builds a client for one surface base URL.
func NewSurfaceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SurfaceClient {
	return &SurfaceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("surface_client"),
	}
}

// Call invokes one surface action and returns the raw JSON response body.
// params is marshaled as the request body for POST and ignored for GET.
func (c *SurfaceClient) Call(ctx context.Context, method, action string, params any) (encodingjson.RawMessage, error) {
	url := c.baseURL + "/" + strings.TrimLeft(action, "/")

	var body io.Reader
	if method == http.MethodPost {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("capability: marshal params for %s: %w", action, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("capability: build request for %s: %w", action, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSurface, action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %v", ErrSurface, action, err)
	}

	c.logger.Debug("Surface call complete",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	// An {"error"} body wins over the status code: surfaces may report
	// failures with 200.
	var se surfaceError
	if json.Unmarshal(respBody, &se) == nil && se.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrSurface, action, se.Error)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrSurface, action, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if len(respBody) == 0 {
		respBody = []byte(`{}`)
	}
	return respBody, nil
}

// Get is shorthand for a parameterless GET action.
func (c *SurfaceClient) Get(ctx context.Context, action string) (encodingjson.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, action, nil)
}

// Post is shorthand for a POST action with a JSON body.
func (c *SurfaceClient) Post(ctx context.Context, action string, params any) (encodingjson.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, action, params)
}
