package repositories

import (
	"context"
	"fmt"

	"github.com/ft-lockup/backend/internal/models"
)

type DepositRepo struct {
	db querier
}

func NewDepositRepo(db querier) *DepositRepo {
	return &DepositRepo{db: db}
}

func (r *DepositRepo) HasDeposit(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM deposits WHERE tx_hash = $1)", txHash,
	).Scan(&exists)
	return exists, err
}

// InsertDeposit fails with ErrDepositProcessed when txHash is already recorded.
func (r *DepositRepo) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO deposits (tx_hash, sender, amount, refunded)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (tx_hash) DO NOTHING
	`, d.TxHash, d.Sender, d.Amount.String(), d.Refunded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrDepositProcessed, d.TxHash)
	}
	return nil
}
