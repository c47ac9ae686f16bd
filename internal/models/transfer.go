package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer kinds
const (
	TransferKindClaim       = "claim"
	TransferKindTermination = "termination"
	TransferKindRefund      = "refund"
)

// Transfer statuses
const (
	TransferStatusPending  = "pending"
	TransferStatusSent     = "sent"
	TransferStatusReverted = "reverted"
)

var ValidTransferTransitions = map[string][]string{
	TransferStatusPending:  {TransferStatusSent, TransferStatusReverted},
	TransferStatusSent:     {},
	TransferStatusReverted: {},
}

func IsValidTransferTransition(from, to string) bool {
	for _, s := range ValidTransferTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transfer is an outgoing payout whose local effect (the debit) is already
// committed. It stays pending until the token transfer either goes through
// or is compensated.
type Transfer struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Beneficiary string          `json:"beneficiary"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo"`
	Claims      []LockupClaim   `json:"claims,omitempty"`
	LockupIndex *LockupIndex    `json:"lockup_index,omitempty"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (t *Transfer) Clone() *Transfer {
	out := *t
	out.Claims = append([]LockupClaim(nil), t.Claims...)
	if t.LockupIndex != nil {
		idx := *t.LockupIndex
		out.LockupIndex = &idx
	}
	return &out
}
