package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actor types
const (
	ActorAccount = "account"
	ActorSystem  = "system"
)

type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	Actor      string    `json:"actor,omitempty"`
	ActorType  string    `json:"actor_type"` // account/system
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id,omitempty"`
	Meta       any       `json:"meta,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
