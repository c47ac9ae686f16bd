package repositories

import (
	"context"
	"encoding/json"

	"github.com/ft-lockup/backend/internal/models"
)

type DraftRepo struct {
	db querier
}

func NewDraftRepo(db querier) *DraftRepo {
	return &DraftRepo{db: db}
}

// --- Drafts ---

// NextDraftID hands out draft ids from a counter, since drafts are removed
// on conversion and a count would reuse ids.
func (r *DraftRepo) NextDraftID(ctx context.Context) (models.DraftIndex, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE ledger_counters SET value = value + 1
		WHERE name = 'next_draft_id'
		RETURNING value - 1
	`).Scan(&id)
	return models.DraftIndex(id), err
}

func (r *DraftRepo) InsertDraft(ctx context.Context, id models.DraftIndex, d *models.Draft) error {
	lockup, err := json.Marshal(d.Lockup)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO drafts (idx, draft_group_id, lockup) VALUES ($1, $2, $3)
	`, int64(id), int64(d.DraftGroupID), lockup)
	return err
}

func (r *DraftRepo) GetDraft(ctx context.Context, id models.DraftIndex) (*models.Draft, error) {
	var (
		d       models.Draft
		groupID int64
		lockup  []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT draft_group_id, lockup FROM drafts WHERE idx = $1
	`, int64(id)).Scan(&groupID, &lockup)
	if err != nil {
		return nil, notFound(err, models.ErrDraftNotFound)
	}
	d.DraftGroupID = models.DraftGroupIndex(groupID)
	if err := json.Unmarshal(lockup, &d.Lockup); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DraftRepo) RemoveDraft(ctx context.Context, id models.DraftIndex) (*models.Draft, error) {
	var (
		d       models.Draft
		groupID int64
		lockup  []byte
	)
	err := r.db.QueryRow(ctx, `
		DELETE FROM drafts WHERE idx = $1 RETURNING draft_group_id, lockup
	`, int64(id)).Scan(&groupID, &lockup)
	if err != nil {
		return nil, notFound(err, models.ErrDraftNotFound)
	}
	d.DraftGroupID = models.DraftGroupIndex(groupID)
	if err := json.Unmarshal(lockup, &d.Lockup); err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Draft groups ---

func (r *DraftRepo) NumDraftGroups(ctx context.Context) (uint32, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM draft_groups`).Scan(&n)
	return uint32(n), err
}

func (r *DraftRepo) InsertDraftGroup(ctx context.Context, g *models.DraftGroup) (models.DraftGroupIndex, error) {
	var idx int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO draft_groups (idx, total_amount, payer_id, funded, draft_indices)
		VALUES ((SELECT count(*) FROM draft_groups), $1::numeric, NULLIF($2, ''), $3, $4)
		RETURNING idx
	`, g.TotalAmount.String(), g.PayerID, g.Funded, draftIDs(g.DraftIndices)).Scan(&idx)
	return models.DraftGroupIndex(idx), err
}

func (r *DraftRepo) GetDraftGroup(ctx context.Context, id models.DraftGroupIndex) (*models.DraftGroup, error) {
	var (
		g       models.DraftGroup
		total   string
		payer   *string
		indices []int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT total_amount::text, payer_id, funded, draft_indices
		FROM draft_groups WHERE idx = $1
	`, int64(id)).Scan(&total, &payer, &g.Funded, &indices)
	if err != nil {
		return nil, notFound(err, models.ErrDraftGroupNotFound)
	}
	if g.TotalAmount, err = scanBalance(total); err != nil {
		return nil, err
	}
	if payer != nil {
		g.PayerID = *payer
	}
	g.DraftIndices = make([]models.DraftIndex, len(indices))
	for i, idx := range indices {
		g.DraftIndices[i] = models.DraftIndex(idx)
	}
	return &g, nil
}

func (r *DraftRepo) ReplaceDraftGroup(ctx context.Context, id models.DraftGroupIndex, g *models.DraftGroup) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE draft_groups
		SET total_amount = $1::numeric, payer_id = NULLIF($2, ''), funded = $3,
		    draft_indices = $4, updated_at = now()
		WHERE idx = $5
	`, g.TotalAmount.String(), g.PayerID, g.Funded, draftIDs(g.DraftIndices), int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDraftGroupNotFound
	}
	return nil
}

func draftIDs(indices []models.DraftIndex) []int64 {
	out := make([]int64, len(indices))
	for i, idx := range indices {
		out[i] = int64(idx)
	}
	return out
}
