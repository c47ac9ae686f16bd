package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	genesis = int64(1_600_000_000)
	oneYear = int64(365 * 24 * 60 * 60)
	token   = "EQToken"
)

// 60000 TON in nanoTON
var amount = decimal.RequireFromString("60000000000000")

func frac(num, den int64) decimal.Decimal {
	return models.MulDiv(amount, decimal.NewFromInt(num), decimal.NewFromInt(den))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(ts, 0)
}

type sentTransfer struct {
	To     string
	Amount decimal.Decimal
	Memo   string
}

var errNotSent = fmt.Errorf("%w: wallet is empty", models.ErrTransferNotSent)

type fakeTransferer struct {
	mu   sync.Mutex
	fail error
	sent []sentTransfer
}

func (f *fakeTransferer) Transfer(_ context.Context, to string, amount decimal.Decimal, memo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentTransfer{To: to, Amount: amount, Memo: memo})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testLedger struct {
	store      *memstore.Store
	clock      *fakeClock
	transferer *fakeTransferer
	publisher  *recordingPublisher

	transfers *TransferService
	lockups   *LockupService
	drafts    *DraftService
	deposits  *DepositService
	whitelist *WhitelistService
}

func newTestLedger(t *testing.T, whitelist ...string) *testLedger {
	t.Helper()
	log := zap.NewNop()
	clock := &fakeClock{now: time.Unix(genesis, 0)}
	store := memstore.New().WithClock(clock.Now)
	tr := &fakeTransferer{}
	pub := &recordingPublisher{}

	transfers := NewTransferService(store, tr, pub, time.Second, log)
	l := &testLedger{
		store:      store,
		clock:      clock,
		transferer: tr,
		publisher:  pub,
		transfers:  transfers,
		lockups:    NewLockupService(store, transfers, pub, token, clock.Now, log),
		drafts:     NewDraftService(store, pub, nil, log),
		deposits:   NewDepositService(store, transfers, pub, nil, log),
		whitelist:  NewWhitelistService(store, nil, log),
	}
	require.NoError(t, l.whitelist.Seed(context.Background(), whitelist))
	return l
}

// deposit funds a new lockup through the deposit handler and returns its index.
func (l *testLedger) deposit(t *testing.T, sender string, lockup models.Lockup) models.LockupIndex {
	t.Helper()
	msg, err := json.Marshal(lockup)
	require.NoError(t, err)
	res, err := l.deposits.OnTransfer(context.Background(), sender, lockup.TotalBalance(), string(msg))
	require.NoError(t, err)
	require.False(t, res.Refunded, res.Reason)
	require.NotNil(t, res.LockupIndex)
	return *res.LockupIndex
}

func linearSchedule() models.Schedule {
	return models.Schedule{
		{Timestamp: genesis, Balance: decimal.Zero},
		{Timestamp: genesis + oneYear, Balance: amount},
	}
}

// lockupAndVesting returns a lockup that releases 3/4 linearly between years
// 2 and 4 and the rest one second later, plus a vesting schedule with a 1/4
// cliff at year 1 and linear vesting up to year 4.
func lockupAndVesting() (models.Schedule, models.Schedule) {
	lockup := models.Schedule{
		{Timestamp: genesis + 2*oneYear, Balance: decimal.Zero},
		{Timestamp: genesis + 4*oneYear, Balance: frac(3, 4)},
		{Timestamp: genesis + 4*oneYear + 1, Balance: amount},
	}
	vesting := models.Schedule{
		{Timestamp: genesis + oneYear - 1, Balance: decimal.Zero},
		{Timestamp: genesis + oneYear, Balance: frac(1, 4)},
		{Timestamp: genesis + 4*oneYear, Balance: amount},
	}
	return lockup, vesting
}

func requireBalance(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, want.Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func requireKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind.String(), models.KindOf(err).String(), err.Error())
}

func TestCheckPage(t *testing.T) {
	tests := []struct {
		name             string
		from, to, n      uint32
		wantFrom, wantTo uint32
		wantErr          error
	}{
		{name: "inside", from: 1, to: 3, n: 5, wantFrom: 1, wantTo: 3},
		{name: "clipped", from: 2, to: 100, n: 5, wantFrom: 2, wantTo: 5},
		{name: "empty", from: 5, to: 5, n: 5, wantFrom: 5, wantTo: 5},
		{name: "reversed", from: 3, to: 1, n: 5, wantErr: models.ErrInvalidRange},
		{name: "past the end", from: 7, to: 9, n: 5, wantErr: models.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := checkPage(tt.from, tt.to, tt.n)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantFrom, from)
			require.Equal(t, tt.wantTo, to)
		})
	}
}

func TestResolveLockupAccounts(t *testing.T) {
	upper := func(s string) (string, error) {
		if s == "bad" {
			return "", models.ErrInvalidAccount
		}
		return "canonical:" + s, nil
	}

	l := models.Lockup{
		AccountID:         "alice",
		TerminationConfig: &models.TerminationConfig{TerminatorID: "eve"},
	}
	require.NoError(t, resolveLockupAccounts(upper, &l))
	require.Equal(t, "canonical:alice", l.AccountID)
	require.Equal(t, "canonical:eve", l.TerminationConfig.TerminatorID)
	require.Empty(t, l.TerminationConfig.PayerID)

	bad := models.Lockup{AccountID: "bad"}
	require.ErrorIs(t, resolveLockupAccounts(upper, &bad), models.ErrInvalidAccount)

	empty := models.Lockup{}
	require.ErrorIs(t, resolveLockupAccounts(nil, &empty), models.ErrInvalidAccount)
}
