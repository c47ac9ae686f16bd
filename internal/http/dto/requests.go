package dto

import (
	"github.com/ft-lockup/backend/internal/models"
	"github.com/shopspring/decimal"
)

type ClaimLockupItem struct {
	Index  models.LockupIndex `json:"index"`
	Amount *decimal.Decimal   `json:"amount,omitempty"` // пусто — всё разблокированное
}

type ClaimLockupsRequest struct {
	Lockups []ClaimLockupItem `json:"lockups"`
}

type TerminateRequest struct {
	// Раскрытое расписание vesting, если в lockup хранится только его хэш
	HashedSchedule       models.Schedule `json:"hashed_schedule,omitempty"`
	TerminationTimestamp *int64          `json:"termination_timestamp,omitempty"`
}

type WhitelistRequest struct {
	AccountID string `json:"account_id"`
}

type CreateDraftsRequest struct {
	Drafts []models.Draft `json:"drafts"`
}

type ConvertDraftsRequest struct {
	DraftIDs []models.DraftIndex `json:"draft_ids"`
}

type HashScheduleRequest struct {
	Schedule models.Schedule `json:"schedule"`
}

type ValidateScheduleRequest struct {
	Schedule            models.Schedule `json:"schedule"`
	TotalBalance        string          `json:"total_balance"`
	TerminationSchedule models.Schedule `json:"termination_schedule,omitempty"`
}
