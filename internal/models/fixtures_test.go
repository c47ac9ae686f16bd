package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

const (
	genesis = int64(1_600_000_000)
	oneYear = int64(365 * 24 * 60 * 60)
)

// 60000 tokens with 18 decimals
var amount = decimal.RequireFromString("60000000000000000000000")

func frac(num, den int64) decimal.Decimal {
	return MulDiv(amount, decimal.NewFromInt(num), decimal.NewFromInt(den))
}

func linearSchedule() Schedule {
	return Schedule{
		{Timestamp: genesis, Balance: decimal.Zero},
		{Timestamp: genesis + oneYear, Balance: amount},
	}
}

// lockupAndVesting returns a lockup that releases 3/4 linearly between years
// 2 and 4 and the rest one second later, plus a vesting schedule with a 1/4
// cliff at year 1 and linear vesting up to year 4.
func lockupAndVesting() (Schedule, Schedule) {
	lockup := Schedule{
		{Timestamp: genesis + 2*oneYear, Balance: decimal.Zero},
		{Timestamp: genesis + 4*oneYear, Balance: frac(3, 4)},
		{Timestamp: genesis + 4*oneYear + 1, Balance: amount},
	}
	vesting := Schedule{
		{Timestamp: genesis + oneYear - 1, Balance: decimal.Zero},
		{Timestamp: genesis + oneYear, Balance: frac(1, 4)},
		{Timestamp: genesis + 4*oneYear, Balance: amount},
	}
	return lockup, vesting
}

func assertBalance(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: got %s, want %s", name, got, want)
	}
}
