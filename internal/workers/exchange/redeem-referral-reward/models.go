// internal/workers/exchange/redeem-referral-reward/models.go
package redeemreferralreward

import (
	"context"

	"entitlement-workers/internal/entitlement"
)

type Input struct {
	UserID          string `json:"userId"`
	BillingIdentity string `json:"billingIdentity,omitempty"`
	ReferrerID      string `json:"referrerId,omitempty"`
}

type Output struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	Tier             string `json:"tier"`
	GrantKey         string `json:"grantKey"`
	ReferrerCredited bool   `json:"referrerCredited"`
}

// ExchangeService runs the grant workflow for the invitee's reward.
type ExchangeService interface {
	Exchange(ctx context.Context, in entitlement.ExchangeInput) (*entitlement.ExchangeOutcome, error)
}

// WalletCreditor adds coins to the referrer's wallet.
type WalletCreditor interface {
	Credit(ctx context.Context, userID string, amount int64) error
}
