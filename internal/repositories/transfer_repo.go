package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TransferRepo struct {
	db querier
}

func NewTransferRepo(db querier) *TransferRepo {
	return &TransferRepo{db: db}
}

const transferColumns = `id, kind, beneficiary, amount::text, memo, claims, lockup_idx,
		       status, COALESCE(error, ''), created_at, updated_at`

func (r *TransferRepo) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	claims, err := json.Marshal(t.Claims)
	if err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO transfers (id, kind, beneficiary, amount, memo, claims, lockup_idx, status)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, t.ID, t.Kind, t.Beneficiary, t.Amount.String(), t.Memo, claims, lockupIdxArg(t.LockupIndex), t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TransferRepo) GetTransfer(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err != nil {
		return nil, notFound(err, models.ErrTransferNotFound)
	}
	return t, nil
}

// UpdateTransfer persists a status change. Only pending transfers can move.
func (r *TransferRepo) UpdateTransfer(ctx context.Context, t *models.Transfer) error {
	err := r.db.QueryRow(ctx, `
		UPDATE transfers SET status = $1, error = NULLIF($2, ''), updated_at = now()
		WHERE id = $3 AND status = 'pending'
		RETURNING updated_at
	`, t.Status, t.Error, t.ID).Scan(&t.UpdatedAt)
	return notFound(err, models.ErrTransferNotPending)
}

func (r *TransferRepo) ListPendingTransfers(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at LIMIT $2
	`, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransferRepo) CountPendingTransfers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM transfers WHERE status = 'pending'`).Scan(&n)
	return n, err
}

func scanTransfer(row pgx.Row) (*models.Transfer, error) {
	var (
		t         models.Transfer
		amount    string
		claims    []byte
		lockupIdx *int64
	)
	err := row.Scan(&t.ID, &t.Kind, &t.Beneficiary, &amount, &t.Memo, &claims, &lockupIdx,
		&t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = scanBalance(amount); err != nil {
		return nil, err
	}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &t.Claims); err != nil {
			return nil, err
		}
	}
	if lockupIdx != nil {
		idx := models.LockupIndex(*lockupIdx)
		t.LockupIndex = &idx
	}
	return &t, nil
}

func lockupIdxArg(idx *models.LockupIndex) *int64 {
	if idx == nil {
		return nil
	}
	v := int64(*idx)
	return &v
}
