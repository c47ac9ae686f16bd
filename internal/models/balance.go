package models

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Balances are token amounts in the smallest unit (nanoTON). They must stay
// integral, so division always goes through MulDiv.

var maxBalance = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

// ValidateBalance rejects fractional, negative and >= 2^128 amounts.
func ValidateBalance(b decimal.Decimal) error {
	if !b.IsInteger() || b.IsNegative() || b.GreaterThanOrEqual(maxBalance) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b.String())
	}
	return nil
}

// ParseBalance parses a decimal integer string such as "60000000000000".
func ParseBalance(s string) (decimal.Decimal, error) {
	b, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := ValidateBalance(b); err != nil {
		return decimal.Zero, err
	}
	return b, nil
}

// MulDiv returns a*b/c truncated toward zero.
func MulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// SumBalances adds up all amounts.
func SumBalances(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// balanceBytesLE encodes b as a 16-byte little-endian unsigned integer.
func balanceBytesLE(b decimal.Decimal) []byte {
	out := make([]byte, 16)
	be := b.BigInt().Bytes()
	for i := 0; i < len(be) && i < 16; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}
