// internal/grant/client.go
package grant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"entitlement-workers/internal/common/errors"
	httpclient "entitlement-workers/internal/common/http"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
)

// TokenSource provides the bearer token for the grant endpoint.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// Client calls the remote promotional grant endpoint. Transient failures
// are retried a bounded number of times under the same idempotency key, so
// a retry can never double-grant.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *httpclient.Client
	maxRetries int
	log        logger.Logger
}

type grantResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, maxRetries int, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: httpclient.NewClient(timeout),
		maxRetries: maxRetries,
		log:        log,
	}
}

// Grant issues the promotional entitlement. Any terminal failure surfaces
// as GRANT_FAILED; a response that is well-formed but not successful is a
// failure too, never a silent success.
func (c *Client) Grant(ctx context.Context, req entitlement.GrantRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.NewGrantFailedError(req.EntitlementID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return errors.NewGrantFailedError(req.EntitlementID, ctx.Err())
			case <-time.After(backoff):
			}
			c.log.Warn("retrying grant", map[string]interface{}{
				"entitlementId":  req.EntitlementID,
				"idempotencyKey": req.IdempotencyKey,
				"attempt":        attempt,
			})
		}

		retryable, err := c.attempt(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return errors.NewGrantFailedError(req.EntitlementID, lastErr)
}

// attempt performs one grant call. The bool reports whether the failure is
// worth retrying: network errors and 5xx are, 4xx and explicit rejections
// are not.
func (c *Client) attempt(ctx context.Context, payload []byte) (bool, error) {
	token, err := c.tokens.BearerToken(ctx)
	if err != nil {
		return true, fmt.Errorf("grant token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/grants", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("grant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return true, fmt.Errorf("grant call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("grant response read: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("grant endpoint error (status %d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return false, fmt.Errorf("grant rejected (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed grantResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("grant response unmarshal: %w", err)
	}
	if !parsed.Success {
		return false, fmt.Errorf("grant not successful: %s", parsed.Message)
	}
	return false, nil
}
