package verification

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
)

// Status is the lifecycle state of a verification record
type Status string

const (
	StatusAssigned         Status = "assigned"
	StatusAccepted         Status = "accepted"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusRevisionRequired Status = "revision_required"
)

// activeStatuses are the non-terminal states that count towards workload
var activeStatuses = []Status{StatusAssigned, StatusAccepted, StatusInProgress}

// completedStatuses are the states reached by finishing a review
var completedStatuses = []Status{StatusCompleted, StatusApproved, StatusRejected, StatusRevisionRequired}

// IsActive reports whether the status is non-terminal
func (s Status) IsActive() bool {
	for _, a := range activeStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the status is a finished review
func (s Status) IsCompleted() bool {
	for _, c := range completedStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// Recommendation is the verifier's verdict at completion
type Recommendation string

const (
	RecommendationApproved         Recommendation = "approved"
	RecommendationRejected         Recommendation = "rejected"
	RecommendationRevisionRequired Recommendation = "revision_required"
)

// Category is one section of the verification checklist
type Category string

const (
	CategoryEnvironmental  Category = "environmental"
	CategoryFeasibility    Category = "feasibility"
	CategoryDocumentation  Category = "documentation"
	CategoryLocation       Category = "location"
	CategorySustainability Category = "sustainability"
)

// CategoryWeights are the fixed weights of the overall score
var CategoryWeights = map[Category]float64{
	CategoryEnvironmental:  0.25,
	CategoryFeasibility:    0.20,
	CategoryDocumentation:  0.20,
	CategoryLocation:       0.15,
	CategorySustainability: 0.20,
}

// Valid reports whether c is a known checklist category
func (c Category) Valid() bool {
	_, ok := CategoryWeights[c]
	return ok
}

// CategoryScore is the verifier's assessment of one checklist section
type CategoryScore struct {
	Score     *float64   `json:"score,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Categories holds the checklist sections that have been filled in
type Categories map[Category]CategoryScore

// OverallScore is the weighted average over the categories that have a score.
// Unscored categories do not contribute weight. Returns nil when none are scored.
func (c Categories) OverallScore() *float64 {
	var totalScore, totalWeight float64
	for category, weight := range CategoryWeights {
		entry, ok := c[category]
		if !ok || entry.Score == nil {
			continue
		}
		totalScore += *entry.Score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return nil
	}
	overall := totalScore / totalWeight
	return &overall
}

// Annotation is a reviewer note pinned to a project document
type Annotation struct {
	ID         uuid.UUID `json:"id"`
	DocumentID string    `json:"document_id"`
	Page       int       `json:"page,omitempty"`
	Text       string    `json:"text"`
	AuthorID   uuid.UUID `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record is one verifier's review of one project
type Record struct {
	ID               uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID        uuid.UUID                        `gorm:"type:uuid;not null;index" json:"project_id"`
	VerifierID       uuid.UUID                        `gorm:"type:uuid;not null;index" json:"verifier_id"`
	Status           Status                           `gorm:"not null;index" json:"status"`
	Priority         directory.Priority               `gorm:"not null;default:'normal'" json:"priority"`
	AssignedAt       time.Time                        `gorm:"not null" json:"assigned_at"`
	AcceptedAt       *time.Time                       `json:"accepted_at,omitempty"`
	StartedAt        *time.Time                       `json:"started_at,omitempty"`
	CompletedAt      *time.Time                       `json:"completed_at,omitempty"`
	DueDate          time.Time                        `gorm:"not null;index" json:"due_date"`
	VerifierWorkload int                              `gorm:"not null;default:0" json:"verifier_workload"`
	Categories       datatypes.JSONType[Categories]   `gorm:"type:jsonb" json:"categories"`
	OverallScore     *float64                         `json:"overall_score,omitempty"`
	QualityScore     *float64                         `json:"quality_score,omitempty"`
	Notes            string                           `json:"notes,omitempty"`
	RejectionReason  *string                          `json:"rejection_reason,omitempty"`
	RevisionRequests pq.StringArray                   `gorm:"type:text[]" json:"revision_requests,omitempty"`
	Annotations      datatypes.JSONType[[]Annotation] `gorm:"type:jsonb" json:"annotations"`
	SupersededBy     *uuid.UUID                       `gorm:"type:uuid" json:"superseded_by,omitempty"`
	SupersededAt     *time.Time                       `json:"superseded_at,omitempty"`
	CreatedAt        time.Time                        `json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

// TableName overrides the gorm default
func (Record) TableName() string {
	return "verifications"
}

// IsActive reports whether the record still counts as the project's open review
func (r *Record) IsActive() bool {
	return r.Status.IsActive() && r.SupersededBy == nil
}

// VerifierStats are the aggregate statistics scoring works from
type VerifierStats struct {
	Pending              int     `json:"pending" gorm:"column:pending"`
	InProgress           int     `json:"in_progress" gorm:"column:in_progress"`
	CompletedThisMonth   int     `json:"completed_this_month" gorm:"column:completed_this_month"`
	AverageScore         float64 `json:"average_score" gorm:"column:average_score"`
	OnTimeCompletions    int     `json:"on_time_completions" gorm:"column:on_time_completions"`
	TotalVerifications   int     `json:"total_verifications" gorm:"column:total_verifications"`
	OverdueVerifications int     `json:"overdue_verifications" gorm:"column:overdue_verifications"`
}

// Workload is the number of active verifications
func (s VerifierStats) Workload() int {
	return s.Pending + s.InProgress
}

// OnTimeRate is the share of completed reviews finished by their due date,
// as a percentage. Verifiers with no history get 100.
func (s VerifierStats) OnTimeRate() float64 {
	if s.TotalVerifications == 0 {
		return 100
	}
	return float64(s.OnTimeCompletions) / float64(s.TotalVerifications) * 100
}
