package upload

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker issues HEAD requests against resolved public URLs.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker returns a checker whose requests time out after timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{client: &http.Client{Timeout: timeout}}
}

// Check returns the HTTP status of a HEAD request to url.
func (c *HTTPChecker) Check(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build head request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
