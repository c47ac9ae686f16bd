package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newLinearLockup(cfg *TerminationConfig) *Lockup {
	return &Lockup{
		AccountID:         "alice",
		Schedule:          linearSchedule(),
		ClaimedBalance:    decimal.Zero,
		TerminationConfig: cfg,
	}
}

func newVestingLockup(vesting *HashOrSchedule) *Lockup {
	lockup, _ := lockupAndVesting()
	return &Lockup{
		AccountID:      "alice",
		Schedule:       lockup,
		ClaimedBalance: decimal.Zero,
		TerminationConfig: &TerminationConfig{
			TerminatorID:    "eve",
			PayerID:         "owner",
			VestingSchedule: vesting,
		},
	}
}

func TestLockupClaim_Linear(t *testing.T) {
	l := newLinearLockup(nil)

	c, err := l.Claim(0, genesis+oneYear/3)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "first claim", c.UnclaimedBalance, frac(1, 3))
	if c.IsFinal {
		t.Error("claim at 1/3 must not be final")
	}

	c, err = l.Claim(0, genesis+oneYear/3)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "repeated claim", c.UnclaimedBalance, decimal.Zero)
	assertBalance(t, "claimed", l.ClaimedBalance, frac(1, 3))

	c, _ = l.Claim(0, genesis+oneYear/2)
	assertBalance(t, "claim at 1/2", c.UnclaimedBalance, frac(1, 6))

	c, _ = l.Claim(0, genesis+oneYear)
	assertBalance(t, "last claim", c.UnclaimedBalance, frac(1, 2))
	if !c.IsFinal {
		t.Error("claim at the end must be final")
	}
}

func TestLockupClaim_Invariant(t *testing.T) {
	l := newLinearLockup(nil)
	l.ClaimedBalance = frac(1, 2)
	_, err := l.Claim(3, genesis+oneYear/3)
	if KindOf(err) != KindInvariant {
		t.Fatalf("expected invariant error, got %v", err)
	}
	assertBalance(t, "claimed untouched", l.ClaimedBalance, frac(1, 2))
}

func TestLockupClaimAmount(t *testing.T) {
	l := newLinearLockup(nil)
	now := genesis + oneYear/2

	if _, err := l.ClaimAmount(0, frac(2, 3), now); !errors.Is(err, ErrClaimAmountTooBig) {
		t.Fatalf("expected too big claim error, got %v", err)
	}
	c, err := l.ClaimAmount(0, frac(1, 6), now)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "claimed", c.UnclaimedBalance, frac(1, 6))
	assertBalance(t, "left", l.View(0, now).UnclaimedBalance, frac(1, 3))

	if err := l.Unclaim(frac(1, 6)); err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "after unclaim", l.ClaimedBalance, decimal.Zero)
	if err := l.Unclaim(decimal.NewFromInt(1)); KindOf(err) != KindInvariant {
		t.Errorf("expected invariant error, got %v", err)
	}
}

func TestLockupTerminate_Errors(t *testing.T) {
	l := newLinearLockup(nil)
	if _, _, err := l.Terminate("eve", nil, genesis); !errors.Is(err, ErrNoTerminationConfig) {
		t.Errorf("expected no termination config, got %v", err)
	}

	l = newLinearLockup(&TerminationConfig{TerminatorID: "eve"})
	if _, _, err := l.Terminate("mallory", nil, genesis); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if l.TerminationConfig == nil {
		t.Error("config must survive a rejected termination")
	}
}

func TestLockupTerminate_NoVestingSchedule(t *testing.T) {
	l := newLinearLockup(&TerminationConfig{TerminatorID: "eve"})
	if _, err := l.Claim(0, genesis+oneYear/3); err != nil {
		t.Fatal(err)
	}

	cutoff := genesis + oneYear/2
	unvested, payer, err := l.Terminate("eve", nil, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "unvested", unvested, frac(1, 2))
	if payer != "eve" {
		t.Errorf("payer: got %q, want eve", payer)
	}
	assertBalance(t, "total", l.TotalBalance(), frac(1, 2))
	assertBalance(t, "unlocked at cutoff", l.Schedule.UnlockedBalance(cutoff), amount.Sub(unvested))
	assertBalance(t, "unclaimed at 2/3", l.View(0, genesis+oneYear*2/3).UnclaimedBalance, frac(1, 6))

	if _, _, err := l.Terminate("eve", nil, cutoff); !errors.Is(err, ErrNoTerminationConfig) {
		t.Errorf("a lockup can be terminated once, got %v", err)
	}
}

func TestLockupTerminate_HashedVesting(t *testing.T) {
	_, vesting := lockupAndVesting()

	tests := []struct {
		name     string
		cutoff   int64
		unvested decimal.Decimal
	}{
		{"before cliff", genesis + oneYear - 1, amount},
		{"at cliff", genesis + oneYear, frac(3, 4)},
		{"during lockup cliff", genesis + 3*oneYear + oneYear/3, frac(1, 6)},
		{"after vesting finished", genesis + 4*oneYear, decimal.Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newVestingLockup(HashedVesting(vesting.Hash()))
			before := l.Schedule.Clone()

			unvested, payer, err := l.Terminate("eve", vesting, tt.cutoff)
			if err != nil {
				t.Fatal(err)
			}
			assertBalance(t, "unvested", unvested, tt.unvested)
			assertBalance(t, "new total", l.TotalBalance(), amount.Sub(tt.unvested))
			if payer != "owner" {
				t.Errorf("payer: got %q, want owner", payer)
			}
			if l.TerminationConfig != nil {
				t.Error("termination config must be consumed")
			}
			if tt.unvested.IsZero() && len(l.Schedule) != len(before) {
				t.Errorf("schedule must stay unchanged, got %+v", l.Schedule)
			}
		})
	}
}

func TestLockupTerminate_AtCliffKeepsShape(t *testing.T) {
	_, vesting := lockupAndVesting()
	for _, v := range []*HashOrSchedule{HashedVesting(vesting.Hash()), PlainVesting(vesting)} {
		l := newVestingLockup(v)
		if _, _, err := l.Terminate("eve", vesting, genesis+oneYear); err != nil {
			t.Fatal(err)
		}
		assertBalance(t, "unlocked at 2y+1/3y", l.Schedule.UnlockedBalance(genesis+2*oneYear+oneYear/3), frac(1, 8))
		assertBalance(t, "unlocked at 2y+2/3y", l.Schedule.UnlockedBalance(genesis+2*oneYear+oneYear*2/3), frac(1, 4))
	}
}

func TestLockupTerminate_DuringRelease(t *testing.T) {
	_, vesting := lockupAndVesting()
	l := newVestingLockup(HashedVesting(vesting.Hash()))

	c, err := l.Claim(0, genesis+2*oneYear+oneYear/3)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "claimed", c.UnclaimedBalance, frac(1, 8))

	cutoff := genesis + 2*oneYear + oneYear/2
	unvested, _, err := l.Terminate("eve", vesting, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	assertBalance(t, "unvested", unvested, frac(3, 8))
	assertBalance(t, "total", l.TotalBalance(), frac(5, 8))
	assertBalance(t, "unclaimed", l.View(0, cutoff).UnclaimedBalance, frac(1, 16))
}

func TestLockupTerminate_RevealChecks(t *testing.T) {
	lockup, vesting := lockupAndVesting()
	incompatible := Schedule{
		{Timestamp: genesis + 4*oneYear, Balance: decimal.Zero},
		{Timestamp: genesis + 4*oneYear + 1, Balance: amount},
	}

	tests := []struct {
		name     string
		commit   Schedule
		revealed Schedule
		wantErr  error
	}{
		{"nothing revealed", vesting, nil, ErrScheduleHashMismatch},
		{"fake reveal", vesting, lockup, ErrScheduleHashMismatch},
		{"incompatible reveal", incompatible, incompatible, ErrIncompatibleSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newVestingLockup(HashedVesting(tt.commit.Hash()))
			_, _, err := l.Terminate("eve", tt.revealed, genesis+oneYear)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if l.TerminationConfig == nil || !l.TotalBalance().Equal(amount) {
				t.Error("lockup must be unchanged after a rejected termination")
			}
		})
	}
}

func TestLockupValidateNew(t *testing.T) {
	_, vesting := lockupAndVesting()
	incompatible := Schedule{
		{Timestamp: genesis + 4*oneYear, Balance: decimal.Zero},
		{Timestamp: genesis + 4*oneYear + 1, Balance: amount},
	}

	tests := []struct {
		name    string
		lockup  *Lockup
		wantErr error
	}{
		{"plain vesting", newVestingLockup(PlainVesting(vesting)), nil},
		{"hashed vesting is not checked", newVestingLockup(HashedVesting(incompatible.Hash())), nil},
		{"incompatible plain vesting", newVestingLockup(PlainVesting(incompatible)), ErrIncompatibleSchedule},
		{"no termination config", newLinearLockup(nil), nil},
		{"claimed balance set", func() *Lockup {
			l := newLinearLockup(nil)
			l.ClaimedBalance = decimal.NewFromInt(1)
			return l
		}(), ErrNonZeroClaimedBalance},
		{"payer mismatch", func() *Lockup {
			l := newVestingLockup(nil)
			l.TerminationConfig.PayerID = "mallory"
			return l
		}(), ErrPayerMismatch},
		{"no account", func() *Lockup {
			l := newLinearLockup(nil)
			l.AccountID = ""
			return l
		}(), ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lockup.ValidateNew(amount, "owner")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := newLinearLockup(nil).ValidateNew(frac(1, 2), "owner"); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected total mismatch, got %v", err)
	}
}

func TestLockupView_ClaimedAboveTotal(t *testing.T) {
	l := newLinearLockup(&TerminationConfig{TerminatorID: "eve"})
	if _, err := l.Claim(0, genesis+oneYear/2); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Terminate("eve", nil, genesis+oneYear/2); err != nil {
		t.Fatal(err)
	}
	// claimed stays as is; the cut happened exactly at the claimed amount
	assertBalance(t, "claimed", l.ClaimedBalance, frac(1, 2))
	v := l.View(7, genesis+oneYear)
	assertBalance(t, "unclaimed", v.UnclaimedBalance, decimal.Zero)
	if *v.Index != 7 {
		t.Errorf("index: got %d", *v.Index)
	}
}
