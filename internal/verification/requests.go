package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// CreateRequest creates a verification record, which is the moment of assignment
type CreateRequest struct {
	ProjectID  uuid.UUID          `json:"project_id" binding:"required"`
	VerifierID uuid.UUID          `json:"verifier_id" binding:"required"`
	DueDate    time.Time          `json:"due_date" binding:"required"`
	Priority   directory.Priority `json:"priority"`
}

func (r *CreateRequest) validate() error {
	if r.ProjectID == uuid.Nil || r.VerifierID == uuid.Nil {
		return fmt.Errorf("%w: project_id and verifier_id are required", apperrors.ErrValidation)
	}
	if r.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", apperrors.ErrValidation)
	}
	if r.Priority == "" {
		r.Priority = directory.PriorityNormal
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", apperrors.ErrValidation, r.Priority)
	}
	return nil
}

// ChecklistUpdate patches one checklist category
type ChecklistUpdate struct {
	Category Category `json:"category" binding:"required"`
	Score    *float64 `json:"score" binding:"required"`
	Notes    string   `json:"notes"`
}

func (r *ChecklistUpdate) validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", apperrors.ErrValidation, r.Category)
	}
	if r.Score == nil {
		return fmt.Errorf("%w: score is required", apperrors.ErrValidation)
	}
	return validateScore("score", *r.Score)
}

// AnnotationRequest pins a note to a project document
type AnnotationRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	Page       int    `json:"page"`
	Text       string `json:"text" binding:"required"`
}

func (r *AnnotationRequest) validate() error {
	if r.DocumentID == "" || r.Text == "" {
		return fmt.Errorf("%w: document_id and text are required", apperrors.ErrValidation)
	}
	if r.Page < 0 {
		return fmt.Errorf("%w: page must not be negative", apperrors.ErrValidation)
	}
	return nil
}

// CompleteRequest finishes a review with the verifier's recommendation
type CompleteRequest struct {
	Recommendation   Recommendation `json:"recommendation" binding:"required"`
	QualityScore     *float64       `json:"quality_score"`
	Notes            string         `json:"notes"`
	RejectionReason  *string        `json:"rejection_reason,omitempty"`
	RevisionRequests []string       `json:"revision_requests,omitempty"`
}

func (r *CompleteRequest) validate() error {
	if _, ok := completionOutcomes[r.Recommendation]; !ok {
		return fmt.Errorf("%w: unknown recommendation %q", apperrors.ErrValidation, r.Recommendation)
	}
	if r.QualityScore != nil {
		if err := validateScore("quality_score", *r.QualityScore); err != nil {
			return err
		}
	}
	return nil
}

// ReassignRequest moves an active verification to another verifier
type ReassignRequest struct {
	VerifierID uuid.UUID `json:"verifier_id" binding:"required"`
	Reason     string    `json:"reason"`
}

func validateScore(field string, score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: %s must be between 0 and 100", apperrors.ErrValidation, field)
	}
	return nil
}
