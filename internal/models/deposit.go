package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit records an incoming chain transfer that has been handled, so that
// the same transaction is never credited or refunded twice.
type Deposit struct {
	TxHash    string          `json:"tx_hash"`
	Sender    string          `json:"sender"`
	Amount    decimal.Decimal `json:"amount"`
	Refunded  bool            `json:"refunded"`
	CreatedAt time.Time       `json:"created_at"`
}
