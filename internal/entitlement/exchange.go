// internal/entitlement/exchange.go
package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/common/metrics"
)

// Exchange result statuses. PartialSuccess means the grant landed but the
// debit did not; the entitlement stands and the discrepancy is surfaced for
// offline reconciliation, never corrected inline.
const (
	ResultSuccess        = "success"
	ResultPartialSuccess = "partial_success"
)

// ExchangeInput carries everything one exchange needs. Cost zero means no
// wallet interaction at all (referral rewards, comp grants).
type ExchangeInput struct {
	UserID          string
	BillingIdentity string
	EntitlementID   string
	DurationDays    int
	DurationUnit    string
	Cost            int64
	Source          string
}

// ExchangeOutcome is the result handed back to the caller.
type ExchangeOutcome struct {
	Status   string
	Tier     Tier
	GrantKey string
	Balance  int64
}

// Exchanger runs the grant-before-debit exchange workflow: affordability
// check, remote grant, conditional debit, forced sync. The ordering is
// deliberate. Debiting first and failing the grant would take money for
// nothing; granting first at worst gives value for free, which the audit
// trail catches.
type Exchanger struct {
	wallet  WalletStore
	granter Granter
	syncers SyncerSource
	audit   AuditSink
	log     logger.Logger
}

// SyncerSource resolves the per-session Synchronizer for a user so the
// terminal forced sync lands on the live session state.
type SyncerSource interface {
	SyncerFor(ctx context.Context, userID string) (Syncer, error)
}

func NewExchanger(wallet WalletStore, granter Granter, syncers SyncerSource, audit AuditSink, log logger.Logger) *Exchanger {
	return &Exchanger{
		wallet:  wallet,
		granter: granter,
		syncers: syncers,
		audit:   audit,
		log:     log,
	}
}

// Exchange executes one exchange. Failures before the grant call leave no
// residue and are plain errors. After a successful grant the call cannot
// fail anymore: a debit miss degrades the result to partial_success and the
// granted entitlement is kept.
func (e *Exchanger) Exchange(ctx context.Context, in ExchangeInput) (*ExchangeOutcome, error) {
	log := e.log.WithFields(map[string]interface{}{
		"userId":        in.UserID,
		"entitlementId": in.EntitlementID,
		"cost":          in.Cost,
		"source":        in.Source,
	})

	// Affordability gate. A balance short of the cost stops the flow before
	// any network call to the grant endpoint.
	var balance int64
	if in.Cost > 0 {
		var err error
		balance, err = e.wallet.ReadBalance(ctx, in.UserID)
		if err != nil {
			return nil, errors.NewWalletCheckFailedError(err)
		}
		if balance < in.Cost {
			return nil, errors.NewInsufficientBalanceError(balance, in.Cost)
		}
	}

	grantKey := uuid.New().String()
	req := GrantRequest{
		EntitlementID:    in.EntitlementID,
		DurationDays:     in.DurationDays,
		DurationUnit:     in.DurationUnit,
		RequestingUserID: in.UserID,
		BillingIdentity:  in.BillingIdentity,
		IdempotencyKey:   grantKey,
	}
	if err := e.granter.Grant(ctx, req); err != nil {
		metrics.Exchanges.WithLabelValues("grant_failed").Inc()
		e.record(ctx, in, "grant_failed", grantKey)
		return nil, err
	}

	status := ResultSuccess
	if in.Cost > 0 {
		debited, err := e.wallet.ConditionalDebit(ctx, in.UserID, in.Cost)
		if err != nil {
			log.Error("debit errored after grant, keeping entitlement", map[string]interface{}{
				"grantKey": grantKey,
				"error":    err.Error(),
			})
			status = ResultPartialSuccess
		} else if !debited {
			log.Warn("debit guard failed after grant, keeping entitlement", map[string]interface{}{
				"grantKey": grantKey,
			})
			status = ResultPartialSuccess
		}

		// Re-read so the reported balance reflects what the debit actually
		// did, including spends that landed since the affordability check.
		if current, rerr := e.wallet.ReadBalance(ctx, in.UserID); rerr == nil {
			balance = current
		} else if debited {
			balance -= in.Cost
		}
	}

	// Forced sync so the granted entitlement is visible immediately. A sync
	// failure here does not change the exchange result.
	tier := TierFromEntitlements([]string{in.EntitlementID})
	if syncer, err := e.syncers.SyncerFor(ctx, in.UserID); err == nil {
		if t, serr := syncer.Sync(ctx, true); serr == nil {
			tier = t
		} else {
			log.Warn("post-exchange sync failed", map[string]interface{}{
				"grantKey": grantKey,
				"error":    serr.Error(),
			})
		}
	} else {
		log.Warn("no session for post-exchange sync", map[string]interface{}{
			"error": err.Error(),
		})
	}

	metrics.Exchanges.WithLabelValues(status).Inc()
	e.record(ctx, in, status, grantKey)

	return &ExchangeOutcome{
		Status:   status,
		Tier:     tier,
		GrantKey: grantKey,
		Balance:  balance,
	}, nil
}

func (e *Exchanger) record(ctx context.Context, in ExchangeInput, result, grantKey string) {
	e.audit.RecordExchange(ctx, ExchangeRecord{
		UserID:        in.UserID,
		EntitlementID: in.EntitlementID,
		Cost:          in.Cost,
		Result:        result,
		GrantKey:      grantKey,
		Source:        in.Source,
		At:            time.Now().UTC(),
	})
}
