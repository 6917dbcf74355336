// internal/workers/exchange/redeem-promo-code/models.go
package redeempromocode

import (
	"context"

	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
	"entitlement-workers/internal/store/promo"
)

type Input struct {
	UserID          string `json:"userId"`
	BillingIdentity string `json:"billingIdentity,omitempty"`
	Code            string `json:"code"`
}

type Output struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Tier     string `json:"tier"`
	GrantKey string `json:"grantKey"`
}

// PromoStore is the slice of the promo code store this worker uses.
type PromoStore interface {
	Lookup(ctx context.Context, code string) (*promo.Code, error)
	MarkRedeemed(ctx context.Context, code, userID string) (bool, error)
}

// ExchangeService runs the grant workflow for the redeemed code.
type ExchangeService interface {
	Exchange(ctx context.Context, in entitlement.ExchangeInput) (*entitlement.ExchangeOutcome, error)
}

type ServiceDependencies struct {
	Logger    logger.Logger
	Promo     PromoStore
	Exchanger ExchangeService
}
