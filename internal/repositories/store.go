package repositories

import (
	"context"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/google/uuid"
)

// Store runs ledger operations one at a time. Everything fn writes through
// tx becomes visible together when fn returns nil and is discarded otherwise.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	LockupStore
	DraftStore
	WhitelistStore
	TransferStore
	DepositStore
	AuditStore
}

// LockupStore keeps lockups in an append-only index space plus the
// account -> lockup indices lookup.
type LockupStore interface {
	NumLockups(ctx context.Context) (uint32, error)
	GetLockup(ctx context.Context, idx models.LockupIndex) (*models.Lockup, error)
	InsertLockup(ctx context.Context, l *models.Lockup) (models.LockupIndex, error)
	ReplaceLockup(ctx context.Context, idx models.LockupIndex, l *models.Lockup) error
	GetAccountLockups(ctx context.Context, accountID string) ([]models.LockupIndex, error)
	SaveAccountLockups(ctx context.Context, accountID string, indices []models.LockupIndex) error
}

type DraftStore interface {
	NextDraftID(ctx context.Context) (models.DraftIndex, error)
	InsertDraft(ctx context.Context, id models.DraftIndex, d *models.Draft) error
	GetDraft(ctx context.Context, id models.DraftIndex) (*models.Draft, error)
	RemoveDraft(ctx context.Context, id models.DraftIndex) (*models.Draft, error)

	NumDraftGroups(ctx context.Context) (uint32, error)
	InsertDraftGroup(ctx context.Context, g *models.DraftGroup) (models.DraftGroupIndex, error)
	GetDraftGroup(ctx context.Context, id models.DraftGroupIndex) (*models.DraftGroup, error)
	ReplaceDraftGroup(ctx context.Context, id models.DraftGroupIndex, g *models.DraftGroup) error
}

type WhitelistStore interface {
	IsWhitelisted(ctx context.Context, accountID string) (bool, error)
	AddToWhitelist(ctx context.Context, accountID string) error
	RemoveFromWhitelist(ctx context.Context, accountID string) error
	ListWhitelist(ctx context.Context) ([]string, error)
}

type TransferStore interface {
	InsertTransfer(ctx context.Context, t *models.Transfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*models.Transfer, error)
	// UpdateTransfer moves a pending transfer to t.Status and stamps
	// UpdatedAt. Keeping it pending only refreshes the stamp.
	UpdateTransfer(ctx context.Context, t *models.Transfer) error
	// ListPendingTransfers returns pending transfers last updated before
	// updatedBefore, oldest first.
	ListPendingTransfers(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Transfer, error)
	CountPendingTransfers(ctx context.Context) (int, error)
}

// DepositStore remembers which chain transactions were already handled.
type DepositStore interface {
	HasDeposit(ctx context.Context, txHash string) (bool, error)
	InsertDeposit(ctx context.Context, d *models.Deposit) error
}

type AuditStore interface {
	LogAudit(ctx context.Context, entry models.AuditLog) error
	GetAuditByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error)
}
