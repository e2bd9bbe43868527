// Package httpclient is the shared outbound transport for the job service
// and billing collaborators. It owns the timeout, bearer auth, and JSON
// content negotiation so the per-service clients only build requests.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

type Client struct {
	httpClient  *http.Client
	bearerToken string
}

// NewClient builds a transport with a hard per-request timeout. bearerToken
// may be empty, in which case requests go out unauthenticated.
func NewClient(timeout time.Duration, bearerToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		bearerToken: bearerToken,
	}
}

// DoJSON stamps the JSON content type and bearer auth onto req and executes
// it under ctx.
func (c *Client) DoJSON(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return c.httpClient.Do(req.WithContext(ctx))
}

// ReadBodyLimited drains at most limit bytes of a response body, for error
// reporting without unbounded reads.
func ReadBodyLimited(r io.Reader, limit int64) string {
	body, _ := io.ReadAll(io.LimitReader(r, limit))
	return string(body)
}
