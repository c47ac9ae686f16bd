package repositories

import (
	"context"
)

type WhitelistRepo struct {
	db querier
}

func NewWhitelistRepo(db querier) *WhitelistRepo {
	return &WhitelistRepo{db: db}
}

func (r *WhitelistRepo) IsWhitelisted(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM deposit_whitelist WHERE account_id = $1)", accountID,
	).Scan(&exists)
	return exists, err
}

func (r *WhitelistRepo) AddToWhitelist(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO deposit_whitelist (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

func (r *WhitelistRepo) RemoveFromWhitelist(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM deposit_whitelist WHERE account_id = $1`, accountID)
	return err
}

func (r *WhitelistRepo) ListWhitelist(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT account_id FROM deposit_whitelist ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
