// internal/workers/exchange/redeem-promo-code/handler_test.go
package redeempromocode

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "entitlement-workers/internal/common/errors"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
	"entitlement-workers/internal/store/promo"
)

type fakePromoStore struct {
	code       *promo.Code
	lookupErr  error
	claimed    bool
	claimErr   error
	claims     int
	claimedBy  string
	claimedKey string
}

func (f *fakePromoStore) Lookup(_ context.Context, _ string) (*promo.Code, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.code, nil
}

func (f *fakePromoStore) MarkRedeemed(_ context.Context, code, userID string) (bool, error) {
	f.claims++
	f.claimedKey = code
	f.claimedBy = userID
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.claimed, nil
}

type fakeExchanger struct {
	outcome *entitlement.ExchangeOutcome
	err     error
	calls   int
	lastIn  entitlement.ExchangeInput
}

func (f *fakeExchanger) Exchange(_ context.Context, in entitlement.ExchangeInput) (*entitlement.ExchangeOutcome, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func validCode() *promo.Code {
	return &promo.Code{
		Code:          "WELCOME7",
		EntitlementID: "premium",
		DurationDays:  7,
		DurationUnit:  "day",
	}
}

func newTestHandler(t *testing.T, store PromoStore, ex ExchangeService) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Logger:       logger.NewTestLogger(t),
		Promo:        store,
		Exchanger:    ex,
	})
	require.NoError(t, err)
	return h
}

func TestExecuteSuccess(t *testing.T) {
	store := &fakePromoStore{code: validCode(), claimed: true}
	exchanger := &fakeExchanger{outcome: &entitlement.ExchangeOutcome{
		Status:   entitlement.ResultSuccess,
		Tier:     entitlement.TierPremium,
		GrantKey: "key-1",
	}}
	h := newTestHandler(t, store, exchanger)

	out, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "premium", out.Tier)
	assert.Equal(t, "key-1", out.GrantKey)

	// Promo redemptions are free and carry the code's entitlement.
	assert.Equal(t, int64(0), exchanger.lastIn.Cost)
	assert.Equal(t, "promo", exchanger.lastIn.Source)
	assert.Equal(t, "premium", exchanger.lastIn.EntitlementID)
	assert.Equal(t, "user-1", exchanger.lastIn.BillingIdentity)

	// The code is claimed for this user once the grant stands.
	assert.Equal(t, 1, store.claims)
	assert.Equal(t, "WELCOME7", store.claimedKey)
	assert.Equal(t, "user-1", store.claimedBy)
}

func TestExecuteUnknownCode(t *testing.T) {
	store := &fakePromoStore{code: nil}
	exchanger := &fakeExchanger{}
	h := newTestHandler(t, store, exchanger)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePromoCodeInvalid, apperrors.CodeOf(err))
	assert.Zero(t, exchanger.calls)
}

func TestExecuteAlreadyRedeemed(t *testing.T) {
	code := validCode()
	code.RedeemedBy = sql.NullString{String: "someone-else", Valid: true}
	store := &fakePromoStore{code: code}
	exchanger := &fakeExchanger{}
	h := newTestHandler(t, store, exchanger)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePromoCodeRedeemed, apperrors.CodeOf(err))
	assert.Zero(t, exchanger.calls)
	assert.Zero(t, store.claims)
}

func TestExecuteExpiredCode(t *testing.T) {
	code := validCode()
	code.ExpiresAt = sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
	store := &fakePromoStore{code: code}
	h := newTestHandler(t, store, &fakeExchanger{})

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePromoCodeInvalid, apperrors.CodeOf(err))
}

func TestExecuteGrantFailureLeavesCodeUnclaimed(t *testing.T) {
	store := &fakePromoStore{code: validCode(), claimed: true}
	exchanger := &fakeExchanger{err: apperrors.NewGrantFailedError("premium", assertErr("grant service down"))}
	h := newTestHandler(t, store, exchanger)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGrantFailed, apperrors.CodeOf(err))
	assert.Zero(t, store.claims)
}

func TestExecuteLostClaimRaceStillSucceeds(t *testing.T) {
	// Another redemption claimed the code between lookup and MarkRedeemed.
	// The grant already happened, so the redemption still completes.
	store := &fakePromoStore{code: validCode(), claimed: false}
	exchanger := &fakeExchanger{outcome: &entitlement.ExchangeOutcome{
		Status:   entitlement.ResultSuccess,
		Tier:     entitlement.TierPremium,
		GrantKey: "key-2",
	}}
	h := newTestHandler(t, store, exchanger)

	out, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, store.claims)
}

func TestExecutePartialSuccess(t *testing.T) {
	store := &fakePromoStore{code: validCode(), claimed: true}
	exchanger := &fakeExchanger{outcome: &entitlement.ExchangeOutcome{
		Status:   entitlement.ResultPartialSuccess,
		Tier:     entitlement.TierPremium,
		GrantKey: "key-3",
	}}
	h := newTestHandler(t, store, exchanger)

	out, err := h.Execute(context.Background(), &Input{UserID: "user-1", Code: "WELCOME7"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "partial_success", out.Status)
	assert.Equal(t, 1, store.claims)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
