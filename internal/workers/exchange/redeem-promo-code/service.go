// Package redeempromocode redeems single-use promotional codes for
// temporary entitlements.
package redeempromocode

import (
	"context"
	"time"

	"entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
)

type Service struct {
	config    *Config
	logger    logger.Logger
	promo     PromoStore
	exchanger ExchangeService
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:    config,
		logger:    deps.Logger,
		promo:     deps.Promo,
		exchanger: deps.Exchanger,
	}
}

// Execute validates the code, runs the zero-cost grant workflow, and claims
// the code. The claim happens after the grant so a grant failure leaves the
// code usable; the reverse order would burn codes on transient grant
// outages.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	code, err := s.promo.Lookup(ctx, input.Code)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("promo lookup", err)
	}
	if code == nil {
		return nil, errors.NewPromoCodeInvalidError(input.Code)
	}
	if code.Redeemed() {
		return nil, errors.NewPromoCodeRedeemedError(input.Code)
	}
	if code.Expired(time.Now()) {
		return nil, errors.NewPromoCodeInvalidError(input.Code)
	}

	billingIdentity := input.BillingIdentity
	if billingIdentity == "" {
		billingIdentity = input.UserID
	}

	outcome, err := s.exchanger.Exchange(ctx, entitlement.ExchangeInput{
		UserID:          input.UserID,
		BillingIdentity: billingIdentity,
		EntitlementID:   code.EntitlementID,
		DurationDays:    code.DurationDays,
		DurationUnit:    code.DurationUnit,
		Cost:            0,
		Source:          "promo",
	})
	if err != nil {
		return nil, err
	}

	claimed, err := s.promo.MarkRedeemed(ctx, input.Code, input.UserID)
	if err != nil || !claimed {
		// The grant already stands. A failed or lost claim is surfaced in
		// logs and tolerated, consistent with keeping partial outcomes.
		fields := map[string]interface{}{
			"code":   input.Code,
			"userId": input.UserID,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.logger.Warn("promo code claim did not land after grant", fields)
	}

	return &Output{
		Success:  true,
		Status:   outcome.Status,
		Tier:     string(outcome.Tier),
		GrantKey: outcome.GrantKey,
	}, nil
}
