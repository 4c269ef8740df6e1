package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Entity types recorded in the audit trail
const (
	EntityVerification = "verification"
	EntityProject      = "project"
	EntityAssignment   = "assignment"
)

// Entry is one append-only audit record
type Entry struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string            `gorm:"not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_audit_entity" json:"entity_id"`
	Action     string            `gorm:"not null" json:"action"`
	ActorID    *uuid.UUID        `gorm:"type:uuid" json:"actor_id,omitempty"`
	ActorRole  string            `json:"actor_role,omitempty"`
	Before     datatypes.JSONMap `gorm:"type:jsonb" json:"before,omitempty"`
	After      datatypes.JSONMap `gorm:"type:jsonb" json:"after,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName overrides the gorm default
func (Entry) TableName() string {
	return "audit_log"
}

func (e *Entry) prepare() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
}
