// internal/workers/exchange/exchange-coins/models.go
package exchangecoins

import (
	"context"

	"entitlement-workers/internal/entitlement"
)

type Input struct {
	UserID          string `json:"userId"`
	BillingIdentity string `json:"billingIdentity,omitempty"`
	OfferID         string `json:"offerId"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

type Output struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	Tier             string `json:"tier"`
	GrantKey         string `json:"grantKey"`
	RemainingBalance int64  `json:"remainingBalance"`
}

// ExchangeService runs the grant-before-debit exchange workflow.
type ExchangeService interface {
	Exchange(ctx context.Context, in entitlement.ExchangeInput) (*entitlement.ExchangeOutcome, error)
}

// ResultNotifier delivers best-effort user notifications.
type ResultNotifier interface {
	ExchangeCompleted(ctx context.Context, email, phone string, out *entitlement.ExchangeOutcome, entitlementID string)
}
