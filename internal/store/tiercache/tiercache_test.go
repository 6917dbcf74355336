// internal/store/tiercache/tiercache_test.go
package tiercache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entitlement-workers/internal/entitlement"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock redismock.ClientMock)
		wantTier entitlement.Tier
		wantOK   bool
		wantErr  bool
	}{
		{
			name: "cached premium",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("tier:user-1").SetVal("premium")
			},
			wantTier: entitlement.TierPremium,
			wantOK:   true,
		},
		{
			name: "missing key",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("tier:user-1").RedisNil()
			},
			wantTier: entitlement.TierFree,
			wantOK:   false,
		},
		{
			name: "corrupted entry reads as free",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("tier:user-1").SetVal("diamond")
			},
			wantTier: entitlement.TierFree,
			wantOK:   true,
		},
		{
			name: "redis error",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("tier:user-1").SetErr(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setup(mock)

			store := New(client)
			tier, ok, err := store.Get(context.Background(), "user-1")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantOK, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectSet("tier:user-1", "pro", 0).SetVal("OK")

	store := New(client)
	require.NoError(t, store.Set(context.Background(), "user-1", entitlement.TierPro))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectSet("tier:user-1", "premium", 0).SetErr(errors.New("readonly replica"))

	store := New(client)
	require.Error(t, store.Set(context.Background(), "user-1", entitlement.TierPremium))
}
