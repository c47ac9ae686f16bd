package app

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rawAccount(b byte) (string, []byte) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = b
	}
	return "0:" + hex.EncodeToString(hash), hash
}

func TestNewLedger_SeedsCanonicalWhitelist(t *testing.T) {
	ctx := context.Background()
	raw, hash := rawAccount(7)
	cfg := &config.Config{DepositWhitelist: []string{raw}, TransferTimeout: time.Second}

	store, closeStore, err := OpenStore(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()

	ledger, err := NewLedger(ctx, cfg, store, ton.NoWallet{}, events.NopPublisher{}, zap.NewNop())
	require.NoError(t, err)

	accounts, err := ledger.Whitelist.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{ton.AccountID(0, hash)}, accounts)
	require.Empty(t, ledger.Lockups.GetTokenAccountID())
}

func TestNewLedger_Rejects(t *testing.T) {
	ctx := context.Background()

	for name, cfg := range map[string]*config.Config{
		"bad whitelist entry": {DepositWhitelist: []string{"alice"}},
		"bad token account":   {TokenAccountID: "0:zz"},
	} {
		t.Run(name, func(t *testing.T) {
			store, closeStore, err := OpenStore(ctx, cfg, zap.NewNop())
			require.NoError(t, err)
			defer closeStore()

			_, err = NewLedger(ctx, cfg, store, ton.NoWallet{}, events.NopPublisher{}, zap.NewNop())
			require.ErrorIs(t, err, models.ErrInvalidAccount)
		})
	}
}
