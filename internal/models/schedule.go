package models

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/jbenet/go-base58"
	"github.com/shopspring/decimal"
)

// Checkpoint is one vertex of a piecewise-linear unlock curve: Balance is the
// cumulative amount unlocked at Timestamp (unix seconds).
type Checkpoint struct {
	Timestamp int64           `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
}

// Schedule is ordered by timestamp and balance. Checkpoints sharing a
// timestamp form a cliff that takes effect at that timestamp.
type Schedule []Checkpoint

// NewUnlockedSchedule returns a schedule that is fully unlocked from the epoch.
func NewUnlockedSchedule(total decimal.Decimal) Schedule {
	return Schedule{
		{Timestamp: 0, Balance: decimal.Zero},
		{Timestamp: 1, Balance: total},
	}
}

// zeroSchedule is what remains of a schedule terminated before anything vested.
func zeroSchedule(at int64) Schedule {
	return Schedule{
		{Timestamp: at - 1, Balance: decimal.Zero},
		{Timestamp: at, Balance: decimal.Zero},
	}
}

func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	copy(out, s)
	return out
}

func (s Schedule) TotalBalance() decimal.Decimal {
	if len(s) == 0 {
		return decimal.Zero
	}
	return s[len(s)-1].Balance
}

// UnlockedBalance returns the cumulative amount unlocked at now. Between two
// checkpoints the amount is interpolated with truncating integer division.
func (s Schedule) UnlockedBalance(now int64) decimal.Decimal {
	if len(s) == 0 {
		return decimal.Zero
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp > now })
	if i == 0 {
		return s[0].Balance
	}
	if i == len(s) {
		return s.TotalBalance()
	}
	prev, next := s[i-1], s[i]
	return prev.Balance.Add(MulDiv(
		next.Balance.Sub(prev.Balance),
		decimal.NewFromInt(now-prev.Timestamp),
		decimal.NewFromInt(next.Timestamp-prev.Timestamp),
	))
}

// AssertValid checks the schedule shape and that it ends at total.
func (s Schedule) AssertValid(total decimal.Decimal) error {
	if len(s) < 2 {
		return fmt.Errorf("%w: at least 2 checkpoints are required", ErrInvalidSchedule)
	}
	for i, c := range s {
		if c.Timestamp < 0 {
			return fmt.Errorf("%w: checkpoint #%d has a negative timestamp", ErrInvalidSchedule, i)
		}
		if err := ValidateBalance(c.Balance); err != nil {
			return fmt.Errorf("%w: checkpoint #%d: %v", ErrInvalidSchedule, i, err)
		}
		if i == 0 {
			continue
		}
		prev := s[i-1]
		if c.Timestamp < prev.Timestamp {
			return fmt.Errorf("%w: the timestamp of checkpoint #%d is less than the timestamp of checkpoint #%d", ErrInvalidSchedule, i, i-1)
		}
		if c.Balance.LessThan(prev.Balance) {
			return fmt.Errorf("%w: the balance of checkpoint #%d is less than the balance of checkpoint #%d", ErrInvalidSchedule, i, i-1)
		}
	}
	if !s.TotalBalance().Equal(total) {
		return fmt.Errorf("%w: the schedule's total balance %s doesn't match the expected balance %s",
			ErrInvalidSchedule, s.TotalBalance(), total)
	}
	return nil
}

// AssertValidTerminationSchedule rejects a vesting schedule that the lockup
// schedule runs ahead of. Both curves are piecewise linear, so comparing them
// at every checkpoint of either schedule covers the whole timeline.
func (s Schedule) AssertValidTerminationSchedule(vesting Schedule) error {
	check := func(t int64) error {
		lockup, vested := s.UnlockedBalance(t), vesting.UnlockedBalance(t)
		if lockup.GreaterThan(vested) {
			return fmt.Errorf("%w: at %d the lockup unlocks %s while only %s is vested",
				ErrIncompatibleSchedule, t, lockup, vested)
		}
		return nil
	}
	for _, c := range s {
		if err := check(c.Timestamp); err != nil {
			return err
		}
	}
	for _, c := range vesting {
		if err := check(c.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// TerminateAt cuts the schedule at cutoff. The result keeps every checkpoint
// up to cutoff, plus an interpolated one at cutoff when it falls between two
// checkpoints. unvested is what the cut removed from the total.
//
// A cutoff before the first checkpoint keeps the starting floor, which is
// already unlocked at that point.
func (s Schedule) TerminateAt(cutoff int64) (Schedule, decimal.Decimal) {
	total := s.TotalBalance()
	if len(s) == 0 {
		return zeroSchedule(cutoff), total
	}
	if cutoff < s[0].Timestamp {
		floor := s[0].Balance
		if floor.IsZero() {
			return zeroSchedule(cutoff), total
		}
		return Schedule{
			{Timestamp: cutoff, Balance: floor},
			{Timestamp: cutoff, Balance: floor},
		}, total.Sub(floor)
	}

	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp > cutoff })
	out := make(Schedule, i, i+1)
	copy(out, s[:i])
	if i < len(s) && out[i-1].Timestamp < cutoff {
		out = append(out, Checkpoint{Timestamp: cutoff, Balance: s.UnlockedBalance(cutoff)})
	}
	if len(out) == 1 {
		out = append(out, out[0])
	}
	return out, total.Sub(out.TotalBalance())
}

// TerminateAtBalance shrinks the schedule so that it ends at vested while
// keeping its original shape: the curve is followed until it reaches vested
// and stops there.
func (s Schedule) TerminateAtBalance(vested decimal.Decimal, cutoff int64) Schedule {
	if vested.IsZero() {
		return zeroSchedule(cutoff)
	}
	if len(s) == 0 || vested.GreaterThanOrEqual(s.TotalBalance()) {
		return s.Clone()
	}

	out := s.Clone()
	for len(out) > 1 {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		prev := out[len(out)-1]
		if prev.Balance.LessThan(vested) {
			dt := MulDiv(
				decimal.NewFromInt(last.Timestamp-prev.Timestamp),
				vested.Sub(prev.Balance),
				last.Balance.Sub(prev.Balance),
			)
			return append(out, Checkpoint{Timestamp: prev.Timestamp + dt.IntPart(), Balance: vested})
		}
	}

	// vested is at or below the schedule's starting floor
	return Schedule{
		{Timestamp: out[0].Timestamp, Balance: vested},
		{Timestamp: out[0].Timestamp, Balance: vested},
	}
}

// ScheduleHash commits to a schedule without revealing it.
type ScheduleHash [32]byte

// Hash digests the checkpoints as: u32 LE count, then per checkpoint a u64 LE
// timestamp followed by a u128 LE balance.
func (s Schedule) Hash() ScheduleHash {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(s)))
	h.Write(buf[:4])
	for _, c := range s {
		binary.LittleEndian.PutUint64(buf[:], uint64(c.Timestamp))
		h.Write(buf[:])
		h.Write(balanceBytesLE(c.Balance))
	}
	var out ScheduleHash
	copy(out[:], h.Sum(nil))
	return out
}

func (h ScheduleHash) String() string {
	return base58.Encode(h[:])
}

func ParseScheduleHash(s string) (ScheduleHash, error) {
	var h ScheduleHash
	raw := base58.Decode(s)
	if len(raw) != len(h) {
		return h, fmt.Errorf("%w: schedule hash must be 32 base58-encoded bytes", ErrInvalidSchedule)
	}
	copy(h[:], raw)
	return h, nil
}

func (h ScheduleHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *ScheduleHash) UnmarshalText(text []byte) error {
	parsed, err := ParseScheduleHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
