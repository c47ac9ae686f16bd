package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestUnlockedBalance_Linear(t *testing.T) {
	s := linearSchedule()
	tests := []struct {
		name string
		now  int64
		want decimal.Decimal
	}{
		{"before start", genesis - 100, decimal.Zero},
		{"at start", genesis, decimal.Zero},
		{"one third", genesis + oneYear/3, frac(1, 3)},
		{"half", genesis + oneYear/2, frac(1, 2)},
		{"two thirds", genesis + oneYear*2/3, frac(2, 3)},
		{"at end", genesis + oneYear, amount},
		{"after end", genesis + 10*oneYear, amount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertBalance(t, "unlocked", s.UnlockedBalance(tt.now), tt.want)
		})
	}
}

func TestUnlockedBalance_Cliff(t *testing.T) {
	total := decimal.NewFromInt(60000)
	s := Schedule{
		{Timestamp: genesis + oneYear - 1, Balance: decimal.Zero},
		{Timestamp: genesis + oneYear, Balance: decimal.NewFromInt(6000)},
		{Timestamp: genesis + 2*oneYear, Balance: decimal.NewFromInt(18000)},
		{Timestamp: genesis + 3*oneYear, Balance: decimal.NewFromInt(36000)},
		{Timestamp: genesis + 4*oneYear, Balance: total},
	}
	if err := s.AssertValid(total); err != nil {
		t.Fatalf("expected valid schedule: %v", err)
	}

	tests := []struct {
		name string
		now  int64
		want int64
	}{
		{"genesis", genesis, 0},
		{"one second before cliff", genesis + oneYear - 1, 0},
		{"cliff", genesis + oneYear, 6000},
		{"between year 1 and 2", genesis + oneYear + oneYear/2, 12000},
		{"year 2", genesis + 2*oneYear, 18000},
		{"year 3", genesis + 3*oneYear, 36000},
		{"year 4", genesis + 4*oneYear, 60000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertBalance(t, "unlocked", s.UnlockedBalance(tt.now), decimal.NewFromInt(tt.want))
		})
	}
}

func TestUnlockedBalance_Truncates(t *testing.T) {
	s := Schedule{
		{Timestamp: 0, Balance: decimal.Zero},
		{Timestamp: 3, Balance: decimal.NewFromInt(10)},
	}
	assertBalance(t, "t=1", s.UnlockedBalance(1), decimal.NewFromInt(3))
	assertBalance(t, "t=2", s.UnlockedBalance(2), decimal.NewFromInt(6))
}

func TestUnlockedBalance_SameTimestampJump(t *testing.T) {
	s := Schedule{
		{Timestamp: 10, Balance: decimal.Zero},
		{Timestamp: 20, Balance: decimal.NewFromInt(5)},
		{Timestamp: 20, Balance: decimal.NewFromInt(50)},
		{Timestamp: 30, Balance: decimal.NewFromInt(100)},
	}
	assertBalance(t, "before jump", s.UnlockedBalance(19), decimal.Zero)
	assertBalance(t, "at jump", s.UnlockedBalance(20), decimal.NewFromInt(50))
	assertBalance(t, "after jump", s.UnlockedBalance(25), decimal.NewFromInt(75))
}

func TestUnlockedBalance_Monotonic(t *testing.T) {
	lockup, vesting := lockupAndVesting()
	for _, s := range []Schedule{linearSchedule(), lockup, vesting} {
		prev := s.UnlockedBalance(genesis - 1)
		first := s[0].Balance
		for now := genesis - 1; now <= genesis+5*oneYear; now += oneYear / 97 {
			got := s.UnlockedBalance(now)
			if got.LessThan(prev) {
				t.Fatalf("unlocked balance decreased at %d: %s < %s", now, got, prev)
			}
			if got.LessThan(first) || got.GreaterThan(s.TotalBalance()) {
				t.Fatalf("unlocked balance %s out of bounds at %d", got, now)
			}
			prev = got
		}
	}
}

func TestAssertValid(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tests := []struct {
		name     string
		schedule Schedule
		total    decimal.Decimal
		valid    bool
	}{
		{"linear", Schedule{{0, decimal.Zero}, {10, ten}}, ten, true},
		{"repeated amount cliff", Schedule{{0, decimal.Zero}, {5, decimal.Zero}, {10, ten}}, ten, true},
		{"same timestamp", Schedule{{0, decimal.Zero}, {5, decimal.Zero}, {5, ten}}, ten, true},
		{"empty", Schedule{}, decimal.Zero, false},
		{"single checkpoint", Schedule{{0, ten}}, ten, false},
		{"time goes back", Schedule{{10, decimal.Zero}, {5, ten}}, ten, false},
		{"amount goes back", Schedule{{0, ten}, {5, decimal.NewFromInt(5)}}, decimal.NewFromInt(5), false},
		{"wrong total", Schedule{{0, decimal.Zero}, {10, ten}}, decimal.NewFromInt(11), false},
		{"fractional amount", Schedule{{0, decimal.Zero}, {10, decimal.RequireFromString("0.5")}}, decimal.RequireFromString("0.5"), false},
		{"negative amount", Schedule{{0, decimal.NewFromInt(-1)}, {10, ten}}, ten, false},
		{"negative timestamp", Schedule{{-1, decimal.Zero}, {10, ten}}, ten, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.AssertValid(tt.total)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Errorf("expected error")
				} else if KindOf(err) != KindValidation {
					t.Errorf("expected validation error, got %v", err)
				}
			}
		})
	}
}

func TestTerminateAt(t *testing.T) {
	s := linearSchedule()

	t.Run("before first checkpoint", func(t *testing.T) {
		got, unvested := s.TerminateAt(genesis - 10)
		assertBalance(t, "unvested", unvested, amount)
		assertBalance(t, "total", got.TotalBalance(), decimal.Zero)
	})

	t.Run("before first checkpoint keeps the floor", func(t *testing.T) {
		floored := Schedule{
			{Timestamp: genesis + 10, Balance: decimal.NewFromInt(1000)},
			{Timestamp: genesis + 20, Balance: amount},
		}
		cutoff := genesis + 5
		got, unvested := floored.TerminateAt(cutoff)
		assertBalance(t, "unvested", unvested, amount.Sub(decimal.NewFromInt(1000)))
		assertBalance(t, "total", got.TotalBalance(), decimal.NewFromInt(1000))
		assertBalance(t, "total + unvested", got.TotalBalance().Add(unvested), amount)
		assertBalance(t, "unlocked at cutoff", got.UnlockedBalance(cutoff), got.TotalBalance())
		if err := got.AssertValid(got.TotalBalance()); err != nil {
			t.Errorf("truncated schedule is invalid: %v", err)
		}
	})

	t.Run("inside", func(t *testing.T) {
		cutoff := genesis + oneYear/2
		got, unvested := s.TerminateAt(cutoff)
		assertBalance(t, "unvested", unvested, frac(1, 2))
		if len(got) != 2 || got[1].Timestamp != cutoff {
			t.Fatalf("unexpected schedule %+v", got)
		}
		assertBalance(t, "unlocked at cutoff", got.UnlockedBalance(cutoff), got.TotalBalance())
		assertBalance(t, "total + unvested", got.TotalBalance().Add(unvested), amount)
		if err := got.AssertValid(got.TotalBalance()); err != nil {
			t.Errorf("truncated schedule is invalid: %v", err)
		}
	})

	t.Run("after last checkpoint", func(t *testing.T) {
		got, unvested := s.TerminateAt(genesis + 2*oneYear)
		assertBalance(t, "unvested", unvested, decimal.Zero)
		if len(got) != len(s) {
			t.Errorf("expected unchanged schedule, got %+v", got)
		}
	})

	t.Run("on a checkpoint", func(t *testing.T) {
		lockup, _ := lockupAndVesting()
		got, unvested := lockup.TerminateAt(genesis + 4*oneYear)
		assertBalance(t, "unvested", unvested, frac(1, 4))
		if len(got) != 2 {
			t.Errorf("expected two checkpoints, got %+v", got)
		}
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		_, _ = s.TerminateAt(genesis + 1)
		assertBalance(t, "total", s.TotalBalance(), amount)
	})
}

func TestTerminateAtBalance(t *testing.T) {
	lockup, _ := lockupAndVesting()

	t.Run("follows the lockup shape", func(t *testing.T) {
		got := lockup.TerminateAtBalance(frac(1, 4), genesis+oneYear)
		assertBalance(t, "total", got.TotalBalance(), frac(1, 4))
		last := got[len(got)-1]
		if last.Timestamp != genesis+2*oneYear+oneYear*2/3 {
			t.Errorf("unexpected end timestamp %d", last.Timestamp)
		}
		assertBalance(t, "unlocked at 2y+1/3y", got.UnlockedBalance(genesis+2*oneYear+oneYear/3), frac(1, 8))
	})

	t.Run("zero vested", func(t *testing.T) {
		cutoff := genesis + oneYear - 1
		got := lockup.TerminateAtBalance(decimal.Zero, cutoff)
		assertBalance(t, "total", got.TotalBalance(), decimal.Zero)
		if got[1].Timestamp != cutoff {
			t.Errorf("expected zero schedule ending at cutoff, got %+v", got)
		}
	})

	t.Run("fully vested", func(t *testing.T) {
		got := lockup.TerminateAtBalance(amount, genesis+5*oneYear)
		if len(got) != len(lockup) {
			t.Errorf("expected unchanged schedule, got %+v", got)
		}
	})

	t.Run("below the floor", func(t *testing.T) {
		s := Schedule{{0, decimal.NewFromInt(10)}, {10, decimal.NewFromInt(20)}}
		got := s.TerminateAtBalance(decimal.NewFromInt(5), 3)
		assertBalance(t, "total", got.TotalBalance(), decimal.NewFromInt(5))
		assertBalance(t, "unlocked", got.UnlockedBalance(100), decimal.NewFromInt(5))
	})
}

func TestAssertValidTerminationSchedule(t *testing.T) {
	lockup, vesting := lockupAndVesting()
	if err := lockup.AssertValidTerminationSchedule(vesting); err != nil {
		t.Fatalf("expected compatible schedules: %v", err)
	}

	incompatible := Schedule{
		{Timestamp: genesis + 4*oneYear, Balance: decimal.Zero},
		{Timestamp: genesis + 4*oneYear + 1, Balance: amount},
	}
	err := lockup.AssertValidTerminationSchedule(incompatible)
	if !errors.Is(err, ErrIncompatibleSchedule) {
		t.Fatalf("expected incompatible schedule error, got %v", err)
	}

	// a schedule is always compatible with itself
	if err := lockup.AssertValidTerminationSchedule(lockup); err != nil {
		t.Errorf("self compatibility: %v", err)
	}
}

func TestScheduleHash(t *testing.T) {
	lockup, vesting := lockupAndVesting()

	if lockup.Hash() != lockup.Clone().Hash() {
		t.Error("hash must be deterministic")
	}
	if lockup.Hash() == vesting.Hash() {
		t.Error("different schedules must not share a hash")
	}

	tweaked := vesting.Clone()
	tweaked[1].Balance = tweaked[1].Balance.Add(decimal.NewFromInt(1))
	if tweaked.Hash() == vesting.Hash() {
		t.Error("a one unit change must change the hash")
	}

	parsed, err := ParseScheduleHash(vesting.Hash().String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != vesting.Hash() {
		t.Error("parsed hash differs")
	}

	if _, err := ParseScheduleHash("not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestHashOrScheduleJSON(t *testing.T) {
	_, vesting := lockupAndVesting()

	var fromHash TerminationConfig
	raw := `{"terminator_id":"eve","vesting_schedule":"` + vesting.Hash().String() + `"}`
	if err := json.Unmarshal([]byte(raw), &fromHash); err != nil {
		t.Fatalf("unmarshal hash: %v", err)
	}
	if !fromHash.VestingSchedule.IsHash() || *fromHash.VestingSchedule.Hash != vesting.Hash() {
		t.Errorf("expected hash variant, got %+v", fromHash.VestingSchedule)
	}

	var fromSchedule TerminationConfig
	raw = `{"terminator_id":"eve","vesting_schedule":[{"timestamp":1,"balance":"0"},{"timestamp":2,"balance":"100"}]}`
	if err := json.Unmarshal([]byte(raw), &fromSchedule); err != nil {
		t.Fatalf("unmarshal schedule: %v", err)
	}
	if fromSchedule.VestingSchedule.IsHash() || len(fromSchedule.VestingSchedule.Schedule) != 2 {
		t.Errorf("expected schedule variant, got %+v", fromSchedule.VestingSchedule)
	}
	if fromSchedule.Payer() != "eve" {
		t.Errorf("payer should default to the terminator, got %q", fromSchedule.Payer())
	}
}
