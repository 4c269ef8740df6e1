package scheduler

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStatus is the state of a one-shot job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a one-shot task due at RunAt and dispatched by Kind
type Job struct {
	ID        uuid.UUID         `json:"id" gorm:"primaryKey;type:uuid"`
	Kind      string            `json:"kind" gorm:"not null;index"`
	Payload   datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	RunAt     time.Time         `json:"run_at" gorm:"not null;index:idx_jobs_due,priority:2"`
	Status    JobStatus         `json:"status" gorm:"not null;index:idx_jobs_due,priority:1"`
	Attempts  int               `json:"attempts" gorm:"not null;default:0"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TableName overrides the gorm default
func (Job) TableName() string {
	return "scheduled_jobs"
}
