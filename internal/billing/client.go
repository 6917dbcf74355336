// internal/billing/client.go
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	httpclient "entitlement-workers/internal/common/http"
	"entitlement-workers/internal/entitlement"
)

// Client talks to the subscription billing provider's REST API. Its answers
// are the only source of truth for the effective tier; everything else in
// the system is a cache or a mirror of what this client returns.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]struct {
			ExpiresDate *time.Time `json:"expires_date"`
		} `json:"entitlements"`
	} `json:"subscriber"`
}

type purchaseResponse struct {
	TransactionID string   `json:"transaction_id"`
	OfferID       string   `json:"offer_id"`
	Entitlements  []string `json:"entitlements"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

// ActiveEntitlements returns the identifiers of entitlements that are
// currently active for the billing identity. An entitlement without an
// expiry is lifetime and always active.
func (c *Client) ActiveEntitlements(ctx context.Context, identity string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/subscribers/%s", c.baseURL, url.PathEscape(identity))

	var parsed subscriberResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]string, 0, len(parsed.Subscriber.Entitlements))
	for id, ent := range parsed.Subscriber.Entitlements {
		if ent.ExpiresDate == nil || ent.ExpiresDate.After(now) {
			active = append(active, id)
		}
	}
	return active, nil
}

// Purchase initiates a purchase of the given offer for the identity.
func (c *Client) Purchase(ctx context.Context, identity, offerID string) (*entitlement.Receipt, error) {
	endpoint := fmt.Sprintf("%s/subscribers/%s/purchases", c.baseURL, url.PathEscape(identity))

	payload, err := json.Marshal(map[string]string{"offer_id": offerID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchase: %w", err)
	}

	var parsed purchaseResponse
	if err := c.postJSON(ctx, endpoint, payload, &parsed); err != nil {
		return nil, err
	}

	return &entitlement.Receipt{
		TransactionID: parsed.TransactionID,
		OfferID:       parsed.OfferID,
		Entitlements:  parsed.Entitlements,
	}, nil
}

// RestorePurchases re-attaches prior purchases to the identity and returns
// the resulting active entitlement set.
func (c *Client) RestorePurchases(ctx context.Context, identity string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/subscribers/%s/restore", c.baseURL, url.PathEscape(identity))

	var parsed subscriberResponse
	if err := c.postJSON(ctx, endpoint, []byte(`{}`), &parsed); err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]string, 0, len(parsed.Subscriber.Entitlements))
	for id, ent := range parsed.Subscriber.Entitlements {
		if ent.ExpiresDate == nil || ent.ExpiresDate.After(now) {
			active = append(active, id)
		}
	}
	return active, nil
}

// LoginIdentity binds the app user to a billing identity. The provider
// creates the subscriber on first sight, so a plain fetch is enough.
func (c *Client) LoginIdentity(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/subscribers/%s", c.baseURL, url.PathEscape(userID))

	var parsed subscriberResponse
	return c.getJSON(ctx, endpoint, &parsed)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.execute(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.execute(req, out)
}

func (c *Client) execute(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read billing response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("billing request failed (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal billing response: %w", err)
	}
	return nil
}
