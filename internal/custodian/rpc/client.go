// Package rpc implements the external-collaborator interfaces over the
// custodian service's HTTP JSON API: position management and fungible asset
// transfers. Requests are HMAC-authenticated.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/veloralabs/liqlock/internal/crypto"
)

// Client is the shared HTTP transport for the custodian API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.HMACAuth
}

// NewClient creates a Client for the custodian API rooted at baseURL. auth
// may be nil when the custodian endpoint does not require authentication
// (local development).
func NewClient(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth: auth,
	}
}

// doRequest executes an HTTP request against the custodian API, attaching
// HMAC headers when configured, and returns the raw response body. Non-2xx
// responses are surfaced as errors carrying the custodian's message.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("custodian/rpc: marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("custodian/rpc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		for k, v := range c.auth.Headers(method, path, string(payload)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custodian/rpc: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("custodian/rpc: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("custodian/rpc: %s %s (HTTP %d): %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("custodian/rpc: %s %s (HTTP %d): %s", method, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// parseAmount decodes a decimal-string amount from an API response. Amounts
// travel as strings to preserve precision across JSON boundaries.
func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("custodian/rpc: invalid amount %q", s)
	}
	return n, nil
}
