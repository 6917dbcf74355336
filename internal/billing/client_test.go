// internal/billing/client_test.go
package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveEntitlements(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name: "lifetime and future expiry are active",
			response: `{"subscriber": {"entitlements": {
				"premium": {"expires_date": "2099-01-01T00:00:00Z"},
				"pro": {"expires_date": null}
			}}}`,
			want: []string{"premium", "pro"},
		},
		{
			name: "expired entitlement excluded",
			response: `{"subscriber": {"entitlements": {
				"premium": {"expires_date": "2020-01-01T00:00:00Z"}
			}}}`,
			want: []string{},
		},
		{
			name:     "no entitlements",
			response: `{"subscriber": {"entitlements": {}}}`,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/subscribers/rc-user-1", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", 5*time.Second)
			got, err := client.ActiveEntitlements(context.Background(), "rc-user-1")
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestActiveEntitlementsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	_, err := client.ActiveEntitlements(context.Background(), "rc-user-1")
	require.Error(t, err)
}

func TestActiveEntitlementsConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "test-key", time.Second)
	_, err := client.ActiveEntitlements(context.Background(), "rc-user-1")
	require.Error(t, err)
}

func TestPurchase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscribers/rc-user-1/purchases", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"transaction_id": "txn-42",
			"offer_id": "premium_monthly",
			"entitlements": ["premium"]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	receipt, err := client.Purchase(context.Background(), "rc-user-1", "premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, "txn-42", receipt.TransactionID)
	assert.Equal(t, "premium_monthly", receipt.OfferID)
	assert.Equal(t, []string{"premium"}, receipt.Entitlements)
}

func TestRestorePurchases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscribers/rc-user-1/restore", r.URL.Path)
		_, _ = w.Write([]byte(`{"subscriber": {"entitlements": {
			"premium": {"expires_date": null}
		}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	got, err := client.RestorePurchases(context.Background(), "rc-user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"premium"}, got)
}

func TestLoginIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribers/user-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"subscriber": {"entitlements": {}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	require.NoError(t, client.LoginIdentity(context.Background(), "user-1"))
}
