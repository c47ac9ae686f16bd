package repositories

import (
	"context"
	"encoding/json"

	"github.com/ft-lockup/backend/internal/models"
)

type LockupRepo struct {
	db querier
}

func NewLockupRepo(db querier) *LockupRepo {
	return &LockupRepo{db: db}
}

func (r *LockupRepo) NumLockups(ctx context.Context) (uint32, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM lockups`).Scan(&n)
	return uint32(n), err
}

func (r *LockupRepo) GetLockup(ctx context.Context, idx models.LockupIndex) (*models.Lockup, error) {
	var (
		l             models.Lockup
		schedule, cfg []byte
		claimed       string
	)
	err := r.db.QueryRow(ctx, `
		SELECT account_id, schedule, claimed_balance::text, termination_config
		FROM lockups WHERE idx = $1
	`, int64(idx)).Scan(&l.AccountID, &schedule, &claimed, &cfg)
	if err != nil {
		return nil, notFound(err, models.ErrLockupNotFound)
	}
	if err := json.Unmarshal(schedule, &l.Schedule); err != nil {
		return nil, err
	}
	if l.ClaimedBalance, err = scanBalance(claimed); err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &l.TerminationConfig); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// InsertLockup appends l. Lockups are never deleted, so the next index is
// the current count.
func (r *LockupRepo) InsertLockup(ctx context.Context, l *models.Lockup) (models.LockupIndex, error) {
	schedule, cfg, err := encodeLockup(l)
	if err != nil {
		return 0, err
	}
	var idx int64
	err = r.db.QueryRow(ctx, `
		INSERT INTO lockups (idx, account_id, schedule, claimed_balance, termination_config)
		VALUES ((SELECT count(*) FROM lockups), $1, $2, $3::numeric, $4)
		RETURNING idx
	`, l.AccountID, schedule, l.ClaimedBalance.String(), cfg).Scan(&idx)
	return models.LockupIndex(idx), err
}

func (r *LockupRepo) ReplaceLockup(ctx context.Context, idx models.LockupIndex, l *models.Lockup) error {
	schedule, cfg, err := encodeLockup(l)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE lockups
		SET account_id = $1, schedule = $2, claimed_balance = $3::numeric,
		    termination_config = $4, updated_at = now()
		WHERE idx = $5
	`, l.AccountID, schedule, l.ClaimedBalance.String(), cfg, int64(idx))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrLockupNotFound
	}
	return nil
}

func (r *LockupRepo) GetAccountLockups(ctx context.Context, accountID string) ([]models.LockupIndex, error) {
	rows, err := r.db.Query(ctx, `
		SELECT lockup_idx FROM account_lockups WHERE account_id = $1 ORDER BY position
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LockupIndex
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		out = append(out, models.LockupIndex(idx))
	}
	return out, rows.Err()
}

// SaveAccountLockups overwrites the account's index set. An empty set removes
// the account entirely.
func (r *LockupRepo) SaveAccountLockups(ctx context.Context, accountID string, indices []models.LockupIndex) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM account_lockups WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	if len(indices) == 0 {
		return nil
	}
	ids := make([]int64, len(indices))
	for i, idx := range indices {
		ids[i] = int64(idx)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO account_lockups (account_id, lockup_idx, position)
		SELECT $1, t.idx, t.pos FROM unnest($2::bigint[]) WITH ORDINALITY AS t(idx, pos)
	`, accountID, ids)
	return err
}

func encodeLockup(l *models.Lockup) ([]byte, []byte, error) {
	schedule, err := json.Marshal(l.Schedule)
	if err != nil {
		return nil, nil, err
	}
	if l.TerminationConfig == nil {
		return schedule, nil, nil
	}
	cfg, err := json.Marshal(l.TerminationConfig)
	if err != nil {
		return nil, nil, err
	}
	return schedule, cfg, nil
}
