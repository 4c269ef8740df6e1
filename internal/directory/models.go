package directory

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Role is the portal role of a user
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleVerifier         Role = "verifier"
	RoleProjectDeveloper Role = "project_developer"
	RoleBuyer            Role = "buyer"
)

// ProjectType tags the kind of carbon project
type ProjectType string

const (
	ProjectTypeReforestation       ProjectType = "reforestation"
	ProjectTypeSolar               ProjectType = "solar"
	ProjectTypeWind                ProjectType = "wind"
	ProjectTypeBiogas              ProjectType = "biogas"
	ProjectTypeWasteManagement     ProjectType = "waste_management"
	ProjectTypeMangroveRestoration ProjectType = "mangrove_restoration"
)

// Priority is shared by projects and verifications
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ProjectStatus is the overall marketplace status of a project
type ProjectStatus string

const (
	ProjectStatusDraft       ProjectStatus = "draft"
	ProjectStatusSubmitted   ProjectStatus = "submitted"
	ProjectStatusUnderReview ProjectStatus = "under_review"
	ProjectStatusApproved    ProjectStatus = "approved"
	ProjectStatusRejected    ProjectStatus = "rejected"
)

// VerificationStatus is the verification progress as seen on the project
type VerificationStatus string

const (
	VerificationStatusPending          VerificationStatus = "pending"
	VerificationStatusInProgress       VerificationStatus = "in_progress"
	VerificationStatusVerified         VerificationStatus = "verified"
	VerificationStatusRejected         VerificationStatus = "rejected"
	VerificationStatusRevisionRequired VerificationStatus = "revision_required"
)

// User is a portal user. Verifiers carry specialties and a workload counter.
type User struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	Email           string         `json:"email" db:"email"`
	Phone           *string        `json:"phone,omitempty" db:"phone"`
	FullName        string         `json:"full_name" db:"full_name"`
	Role            Role           `json:"role" db:"role"`
	IsActive        bool           `json:"is_active" db:"is_active"`
	Specialties     pq.StringArray `json:"specialties" db:"specialties"`
	CurrentWorkload int            `json:"current_workload" db:"current_workload"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IsVerifier reports whether the user may review projects
func (u *User) IsVerifier() bool {
	return u.Role == RoleVerifier
}

// Project is the part of a carbon project the verification core reads and patches
type Project struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	ProjectType        ProjectType        `json:"project_type" db:"project_type"`
	Priority           Priority           `json:"priority" db:"priority"`
	SubmittedAt        *time.Time         `json:"submitted_at,omitempty" db:"submitted_at"`
	ExpectedCredits    float64            `json:"expected_credits" db:"expected_credits"`
	CreatorID          uuid.UUID          `json:"creator_id" db:"creator_id"`
	AssignedVerifierID *uuid.UUID         `json:"assigned_verifier_id,omitempty" db:"assigned_verifier_id"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	Status             ProjectStatus      `json:"status" db:"status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// ProjectPatch carries the status fields the workflow may change. Nil fields
// are left untouched. ClearAssignedVerifier resets the assignment to NULL.
type ProjectPatch struct {
	Status                *ProjectStatus
	VerificationStatus    *VerificationStatus
	AssignedVerifierID    *uuid.UUID
	ClearAssignedVerifier bool
	SubmittedAt           *time.Time
}
