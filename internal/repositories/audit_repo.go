package repositories

import (
	"context"
	"encoding/json"

	"github.com/ft-lockup/backend/internal/models"
)

type AuditRepo struct {
	db querier
}

func NewAuditRepo(db querier) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) LogAudit(ctx context.Context, entry models.AuditLog) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_log (actor, actor_type, action, entity_type, entity_id, meta)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)
	`, entry.Actor, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, meta)
	return err
}

func (r *AuditRepo) GetAuditByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(actor, ''), actor_type, action, entity_type, entity_id, meta, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var (
			l    models.AuditLog
			meta []byte
		)
		if err := rows.Scan(&l.ID, &l.Actor, &l.ActorType, &l.Action, &l.EntityType, &l.EntityID, &meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			var m map[string]any
			if err := json.Unmarshal(meta, &m); err != nil {
				return nil, err
			}
			l.Meta = m
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
