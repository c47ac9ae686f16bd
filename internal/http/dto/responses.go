package dto

import (
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/shopspring/decimal"
)

type AuthResponse struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type CountResponse struct {
	Count uint32 `json:"count"`
}

// AmountResponse carries what actually left the hot wallet. Zero means the
// payout failed and was reverted.
type AmountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type ScheduleHashResponse struct {
	Hash models.ScheduleHash `json:"hash"`
}

type MetaResponse struct {
	TokenAccountID string `json:"token_account_id"`
	DepositAddress string `json:"deposit_address"`
	Network        string `json:"network"`
}
