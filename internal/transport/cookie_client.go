// Package transport implements the syncer's Transport over HTTP, pushing
// cart snapshots to the cookie endpoint.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CookieClient POSTs snapshots to the cookie endpoint and DELETEs to expire
// the cookie. A circuit breaker keeps a dead endpoint from being hammered;
// an open breaker surfaces as a transmission error, which the syncer
// absorbs like any other failure.
type CookieClient struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// NewCookieClient creates a client for the given endpoint URL
// (e.g. "http://localhost:8080/api/cart"). A nil httpClient selects a
// default with a 5s timeout. Callers that need the Set-Cookie responses
// captured pass a client with a cookie jar.
func NewCookieClient(endpoint string, httpClient *http.Client) *CookieClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &CookieClient{
		endpoint: endpoint,
		client:   httpClient,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name: "cart-cookie-endpoint",
		}),
	}
}

func (c *CookieClient) Push(ctx context.Context, payload []byte) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPost, payload)
	})
	return err
}

func (c *CookieClient) Clear(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodDelete, nil)
	})
	return err
}

func (c *CookieClient) do(ctx context.Context, method string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cookie endpoint request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cookie endpoint returned %d", resp.StatusCode)
	}
	return nil
}
