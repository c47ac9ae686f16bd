package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type LockupIndex = uint32

// Lockup is one account's grant.
type Lockup struct {
	AccountID         string             `json:"account_id"`
	Schedule          Schedule           `json:"schedule"`
	ClaimedBalance    decimal.Decimal    `json:"claimed_balance"`
	TerminationConfig *TerminationConfig `json:"termination_config,omitempty"`
}

// LockupClaim is the result of claiming one lockup.
type LockupClaim struct {
	Index            LockupIndex     `json:"index"`
	UnclaimedBalance decimal.Decimal `json:"unclaimed_balance"`
	IsFinal          bool            `json:"is_final"`
}

// NewUnlocked creates a lockup that can be claimed in full right away.
func NewUnlocked(accountID string, total decimal.Decimal) *Lockup {
	return &Lockup{
		AccountID:      accountID,
		Schedule:       NewUnlockedSchedule(total),
		ClaimedBalance: decimal.Zero,
	}
}

func (l *Lockup) Clone() *Lockup {
	out := *l
	out.Schedule = l.Schedule.Clone()
	out.TerminationConfig = l.TerminationConfig.Clone()
	return &out
}

func (l *Lockup) TotalBalance() decimal.Decimal {
	return l.Schedule.TotalBalance()
}

// Claim moves everything unlocked at now into the claimed balance.
func (l *Lockup) Claim(index LockupIndex, now int64) (LockupClaim, error) {
	unlocked := l.Schedule.UnlockedBalance(now)
	if unlocked.LessThan(l.ClaimedBalance) {
		return LockupClaim{}, fmt.Errorf("%w: lockup #%d unlocked %s is below claimed %s",
			ErrInvariant, index, unlocked, l.ClaimedBalance)
	}
	unclaimed := unlocked.Sub(l.ClaimedBalance)
	l.ClaimedBalance = unlocked
	return LockupClaim{
		Index:            index,
		UnclaimedBalance: unclaimed,
		IsFinal:          unlocked.Equal(l.TotalBalance()),
	}, nil
}

// ClaimAmount claims an explicit part of what is unlocked at now.
func (l *Lockup) ClaimAmount(index LockupIndex, amount decimal.Decimal, now int64) (LockupClaim, error) {
	if err := ValidateBalance(amount); err != nil {
		return LockupClaim{}, err
	}
	unlocked := l.Schedule.UnlockedBalance(now)
	if unlocked.LessThan(l.ClaimedBalance) {
		return LockupClaim{}, fmt.Errorf("%w: lockup #%d unlocked %s is below claimed %s",
			ErrInvariant, index, unlocked, l.ClaimedBalance)
	}
	if amount.GreaterThan(unlocked.Sub(l.ClaimedBalance)) {
		return LockupClaim{}, fmt.Errorf("%w: lockup #%d has %s unclaimed, requested %s",
			ErrClaimAmountTooBig, index, unlocked.Sub(l.ClaimedBalance), amount)
	}
	l.ClaimedBalance = l.ClaimedBalance.Add(amount)
	return LockupClaim{
		Index:            index,
		UnclaimedBalance: amount,
		IsFinal:          l.ClaimedBalance.Equal(l.TotalBalance()),
	}, nil
}

// Unclaim returns a claimed amount after a failed payout.
func (l *Lockup) Unclaim(amount decimal.Decimal) error {
	if amount.GreaterThan(l.ClaimedBalance) {
		return fmt.Errorf("%w: cannot return %s, only %s claimed", ErrInvariant, amount, l.ClaimedBalance)
	}
	l.ClaimedBalance = l.ClaimedBalance.Sub(amount)
	return nil
}

// Terminate claws back what has not vested by cutoff and consumes the
// termination config. revealed is required when the config only holds a
// schedule hash. The lockup is left untouched when an error is returned.
//
// ClaimedBalance is never adjusted, so it may end up above the new total.
func (l *Lockup) Terminate(caller string, revealed Schedule, cutoff int64) (decimal.Decimal, string, error) {
	cfg := l.TerminationConfig
	if cfg == nil {
		return decimal.Zero, "", ErrNoTerminationConfig
	}
	if cfg.TerminatorID != caller {
		return decimal.Zero, "", ErrUnauthorized
	}

	total := l.TotalBalance()
	var vesting Schedule
	if vs := cfg.VestingSchedule; vs != nil {
		if vs.IsHash() {
			if revealed == nil {
				return decimal.Zero, "", fmt.Errorf("%w: no schedule revealed", ErrScheduleHashMismatch)
			}
			if revealed.Hash() != *vs.Hash {
				return decimal.Zero, "", ErrScheduleHashMismatch
			}
			if err := revealed.AssertValid(total); err != nil {
				return decimal.Zero, "", err
			}
			if err := l.Schedule.AssertValidTerminationSchedule(revealed); err != nil {
				return decimal.Zero, "", err
			}
			vesting = revealed
		} else {
			vesting = vs.Schedule
		}
	}

	var (
		schedule Schedule
		unvested decimal.Decimal
	)
	if vesting == nil {
		schedule, unvested = l.Schedule.TerminateAt(cutoff)
	} else {
		vested := vesting.UnlockedBalance(cutoff)
		if vested.GreaterThan(total) {
			return decimal.Zero, "", fmt.Errorf("%w: vested %s exceeds total %s", ErrInvariant, vested, total)
		}
		unvested = total.Sub(vested)
		schedule = l.Schedule.Clone()
		if unvested.IsPositive() {
			schedule = l.Schedule.TerminateAtBalance(vested, cutoff)
		}
	}

	payer := cfg.Payer()
	l.Schedule = schedule
	l.TerminationConfig = nil
	return unvested, payer, nil
}

// ValidateNew checks a lockup funded by creator with exactly total.
func (l *Lockup) ValidateNew(total decimal.Decimal, creator string) error {
	if err := l.validateTemplate(total); err != nil {
		return err
	}
	if cfg := l.TerminationConfig; cfg != nil && cfg.PayerID != "" && cfg.PayerID != creator {
		return fmt.Errorf("%w: expected %s, got %s", ErrPayerMismatch, creator, cfg.PayerID)
	}
	return nil
}

func (l *Lockup) validateTemplate(total decimal.Decimal) error {
	if l.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidAccount)
	}
	if !l.ClaimedBalance.IsZero() {
		return ErrNonZeroClaimedBalance
	}
	if err := l.Schedule.AssertValid(total); err != nil {
		return err
	}
	cfg := l.TerminationConfig
	if cfg == nil {
		return nil
	}
	if cfg.TerminatorID == "" {
		return fmt.Errorf("%w: terminator_id is required", ErrInvalidAccount)
	}
	// a hashed schedule can only be checked once revealed
	if vs := cfg.VestingSchedule; vs != nil && !vs.IsHash() {
		if err := vs.Schedule.AssertValid(total); err != nil {
			return err
		}
		if err := l.Schedule.AssertValidTerminationSchedule(vs.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// LockupView is a lockup as seen at a point in time.
type LockupView struct {
	Index             *LockupIndex       `json:"index,omitempty"`
	AccountID         string             `json:"account_id"`
	Schedule          Schedule           `json:"schedule"`
	ClaimedBalance    decimal.Decimal    `json:"claimed_balance"`
	UnclaimedBalance  decimal.Decimal    `json:"unclaimed_balance"`
	TotalBalance      decimal.Decimal    `json:"total_balance"`
	TerminationConfig *TerminationConfig `json:"termination_config,omitempty"`
}

func (l *Lockup) View(index LockupIndex, now int64) LockupView {
	unclaimed := l.Schedule.UnlockedBalance(now).Sub(l.ClaimedBalance)
	if unclaimed.IsNegative() {
		unclaimed = decimal.Zero
	}
	return LockupView{
		Index:             &index,
		AccountID:         l.AccountID,
		Schedule:          l.Schedule,
		ClaimedBalance:    l.ClaimedBalance,
		UnclaimedBalance:  unclaimed,
		TotalBalance:      l.TotalBalance(),
		TerminationConfig: l.TerminationConfig,
	}
}
