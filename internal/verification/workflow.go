package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbon-scribe/project-portal/verification-backend/internal/audit"
	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
	"carbon-scribe/project-portal/verification-backend/pkg/clock"
	"carbon-scribe/project-portal/verification-backend/pkg/workflows"
)

// Notification kinds sent by the workflow
const (
	NotifyAssigned         = "verification_assigned"
	NotifyStarted          = "verification_started"
	NotifyCompleted        = "verification_completed"
	NotifyReassigned       = "verification_reassigned"
	NotifyDeadlineReminder = "deadline_reminder"
	NotifyOverdue          = "verification_overdue"
)

// Scheduled job kinds
const (
	JobDeadlineReminder = "verification.deadline_reminder"
	JobOverdueCheck     = "verification.overdue_check"
)

// Audit actions
const (
	ActionProjectSubmitted = "project_submitted"
	ActionCreated          = "verification_created"
	ActionAccepted         = "verification_accepted"
	ActionStarted          = "verification_started"
	ActionChecklistUpdated = "checklist_updated"
	ActionAnnotated        = "annotation_added"
	ActionCompleted        = "verification_completed"
	ActionReassigned       = "verification_reassigned"
	ActionRebalanced       = "verification_rebalanced"
	ActionOrphaned         = "verification_orphaned"
	ActionDeadlineReminder = "deadline_reminder_sent"
	ActionOverdueNotified  = "verification_overdue"
)

// Workflow events
const (
	EventAccept          = "accept"
	EventStart           = "start"
	EventUpdateChecklist = "update_checklist"
	EventAnnotate        = "annotate"
	EventApprove         = "approve"
	EventReject          = "reject"
	EventRequestRevision = "request_revision"
	EventOrphan          = "orphan"
)

var transitions = []workflows.Transition{
	{From: string(StatusAssigned), Event: EventAccept, To: string(StatusAccepted)},
	{From: string(StatusAssigned), Event: EventStart, To: string(StatusInProgress)},
	{From: string(StatusAccepted), Event: EventStart, To: string(StatusInProgress)},
	{From: string(StatusInProgress), Event: EventUpdateChecklist, To: string(StatusInProgress)},
	{From: string(StatusInProgress), Event: EventAnnotate, To: string(StatusInProgress)},
	{From: string(StatusInProgress), Event: EventApprove, To: string(StatusApproved)},
	{From: string(StatusInProgress), Event: EventReject, To: string(StatusRejected)},
	{From: string(StatusInProgress), Event: EventRequestRevision, To: string(StatusRevisionRequired)},
	{From: string(StatusAssigned), Event: EventOrphan, To: string(StatusRejected)},
	{From: string(StatusAccepted), Event: EventOrphan, To: string(StatusRejected)},
}

type completionOutcome struct {
	event              string
	projectStatus      directory.ProjectStatus
	verificationStatus directory.VerificationStatus
}

var completionOutcomes = map[Recommendation]completionOutcome{
	RecommendationApproved: {
		event:              EventApprove,
		projectStatus:      directory.ProjectStatusApproved,
		verificationStatus: directory.VerificationStatusVerified,
	},
	RecommendationRejected: {
		event:              EventReject,
		projectStatus:      directory.ProjectStatusRejected,
		verificationStatus: directory.VerificationStatusRejected,
	},
	RecommendationRevisionRequired: {
		event:              EventRequestRevision,
		projectStatus:      directory.ProjectStatusUnderReview,
		verificationStatus: directory.VerificationStatusRevisionRequired,
	},
}

// reminderOffsets are the days before the due date a reminder fires
var reminderOffsets = []int{3, 1}

// Notifier delivers a message to a user
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, kind string, payload map[string]interface{}) error
}

// Scheduler runs a job of the given kind at a point in time
type Scheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, kind string, payload map[string]interface{}) (uuid.UUID, error)
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// AuditLogger appends to the audit trail
type AuditLogger interface {
	Append(ctx context.Context, entry *audit.Entry) error
}

// AuditReader reads the audit trail of one entity
type AuditReader interface {
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.Entry, error)
}

// Assigner picks and assigns a verifier for a freshly submitted project. A nil
// record with a nil error means nobody was eligible.
type Assigner interface {
	AssignProject(ctx context.Context, projectID uuid.UUID) (*Record, error)
}

// Dependencies are the collaborators of the workflow
type Dependencies struct {
	Repo      Repository
	Users     directory.UserDirectory
	Projects  directory.ProjectDirectory
	Notifier  Notifier
	Scheduler Scheduler
	Audit     AuditLogger
	Trail     AuditReader
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Workflow drives verification records through their lifecycle and applies
// the side effects of every transition
type Workflow struct {
	repo      Repository
	users     directory.UserDirectory
	projects  directory.ProjectDirectory
	notifier  Notifier
	scheduler Scheduler
	audit     AuditLogger
	trail     AuditReader
	clock     clock.Clock
	logger    *zap.Logger
	machine   *workflows.StateMachine
	assigner  Assigner
}

// NewWorkflow creates the verification workflow
func NewWorkflow(deps Dependencies) *Workflow {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		repo:      deps.Repo,
		users:     deps.Users,
		projects:  deps.Projects,
		notifier:  deps.Notifier,
		scheduler: deps.Scheduler,
		audit:     deps.Audit,
		trail:     deps.Trail,
		clock:     clk,
		logger:    logger,
		machine: workflows.NewStateMachine(transitions,
			string(StatusCompleted), string(StatusApproved), string(StatusRejected), string(StatusRevisionRequired)),
	}
}

// SetAssigner wires the auto-assignment path used on submission
func (w *Workflow) SetAssigner(a Assigner) {
	w.assigner = a
}

// AllowedEvents returns the events the record accepts in its current state
func (w *Workflow) AllowedEvents(record *Record) []string {
	if record.SupersededBy != nil {
		return []string{}
	}
	return w.machine.GetAllowedEvents(string(record.Status))
}

// =====================================================
// Submission and assignment
// =====================================================

// SubmitResult is the outcome of a project submission
type SubmitResult struct {
	Project      *directory.Project `json:"project"`
	Verification *Record            `json:"verification,omitempty"`
	Assigned     bool               `json:"assigned"`
}

// SubmitProject marks the project submitted and tries to auto-assign a verifier.
// Staying unassigned is a valid outcome.
func (w *Workflow) SubmitProject(ctx context.Context, actor auth.Principal, projectID uuid.UUID) (*SubmitResult, error) {
	project, err := w.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Is(project.CreatorID) {
		return nil, fmt.Errorf("%w: only the project creator can submit it", apperrors.ErrForbidden)
	}

	resubmission := project.Status == directory.ProjectStatusUnderReview &&
		project.VerificationStatus == directory.VerificationStatusRevisionRequired
	if project.Status != directory.ProjectStatusDraft && !resubmission {
		return nil, fmt.Errorf("%w: project in status %s cannot be submitted", workflows.ErrInvalidTransition, project.Status)
	}

	active, err := w.repo.ActiveForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: project already has an active verification", apperrors.ErrConflict)
	}

	now := w.clock.Now()
	submitted := directory.ProjectStatusSubmitted
	pending := directory.VerificationStatusPending
	if err := w.projects.PatchProjectStatus(ctx, projectID, directory.ProjectPatch{
		Status:                &submitted,
		VerificationStatus:    &pending,
		ClearAssignedVerifier: true,
		SubmittedAt:           &now,
	}); err != nil {
		return nil, fmt.Errorf("failed to submit project: %w", err)
	}

	w.appendAudit(ctx, actor, audit.EntityProject, projectID, ActionProjectSubmitted,
		map[string]interface{}{"status": project.Status, "verification_status": project.VerificationStatus},
		map[string]interface{}{"status": submitted, "verification_status": pending},
		map[string]interface{}{"resubmission": resubmission})

	result := &SubmitResult{}
	if w.assigner != nil {
		record, err := w.assigner.AssignProject(ctx, projectID)
		switch {
		case err != nil:
			w.logger.Warn("auto-assignment failed, project left unassigned",
				zap.String("project_id", projectID.String()), zap.Error(err))
		case record == nil:
			w.logger.Info("no eligible verifier, project left unassigned",
				zap.String("project_id", projectID.String()))
		default:
			result.Verification = record
			result.Assigned = true
		}
	}

	result.Project, err = w.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateVerification assigns a verifier by creating the project's verification record
func (w *Workflow) CreateVerification(ctx context.Context, actor auth.Principal, req CreateRequest) (*Record, error) {
	if err := auth.RequireAdmin(actor, "assign verifiers"); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	project, err := w.requireProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	verifier, err := w.users.GetUser(ctx, req.VerifierID)
	if err != nil {
		return nil, err
	}
	if !verifier.IsVerifier() || !verifier.IsActive {
		return nil, fmt.Errorf("%w: user %s is not an active verifier", apperrors.ErrValidation, verifier.ID)
	}

	existing, err := w.repo.ActiveForProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: project %s already has active verification %s", apperrors.ErrConflict, project.ID, existing.ID)
	}

	now := w.clock.Now()
	stats, err := w.repo.VerifierStats(ctx, verifier.ID, now)
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:               uuid.New(),
		ProjectID:        project.ID,
		VerifierID:       verifier.ID,
		Status:           StatusAssigned,
		Priority:         req.Priority,
		AssignedAt:       now,
		DueDate:          req.DueDate,
		VerifierWorkload: stats.Workload(),
		Categories:       datatypes.NewJSONType(Categories{}),
		Annotations:      datatypes.NewJSONType([]Annotation{}),
	}
	if err := w.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	inProgress := directory.VerificationStatusInProgress
	if err := w.projects.PatchProjectStatus(ctx, project.ID, directory.ProjectPatch{
		AssignedVerifierID: &verifier.ID,
		VerificationStatus: &inProgress,
	}); err != nil {
		return nil, fmt.Errorf("failed to update project assignment: %w", err)
	}

	w.notify(ctx, verifier.ID, NotifyAssigned, record, map[string]interface{}{
		"project_name": project.Name,
		"priority":     record.Priority,
		"message":      fmt.Sprintf("You have been assigned to verify %s, due %s", project.Name, record.DueDate.Format("2006-01-02")),
	})
	w.refreshWorkload(ctx, verifier.ID)
	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionCreated, nil,
		map[string]interface{}{"status": record.Status, "verifier_id": verifier.ID.String(), "due_date": record.DueDate},
		map[string]interface{}{"project_id": project.ID.String(), "verifier_workload": record.VerifierWorkload})

	w.logger.Info("verification assigned",
		zap.String("verification_id", record.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("verifier_id", verifier.ID.String()),
		zap.Time("due_date", record.DueDate))

	return record, nil
}

// =====================================================
// Verifier transitions
// =====================================================

// Accept acknowledges an assignment. Optional: Start backfills it.
func (w *Workflow) Accept(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Record, error) {
	record, err := w.ownedRecord(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	to, err := w.fire(record, EventAccept)
	if err != nil {
		return nil, err
	}

	from := record.Status
	now := w.clock.Now()
	record.Status = to
	record.AcceptedAt = &now
	if err := w.repo.UpdateFrom(ctx, record, from); err != nil {
		return nil, err
	}

	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionAccepted,
		map[string]interface{}{"status": from}, map[string]interface{}{"status": to}, nil)
	return record, nil
}

// Start begins the review. If the project is gone the record is closed as
// rejected and a not-found error is returned.
func (w *Workflow) Start(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Record, error) {
	record, err := w.ownedRecord(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	to, err := w.fire(record, EventStart)
	if err != nil {
		return nil, err
	}

	project, err := w.requireProject(ctx, record.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			w.closeOrphan(ctx, actor, record)
		}
		return nil, err
	}

	from := record.Status
	now := w.clock.Now()
	if record.AcceptedAt == nil {
		record.AcceptedAt = &now
	}
	record.StartedAt = &now
	record.Status = to
	if err := w.repo.UpdateFrom(ctx, record, from); err != nil {
		return nil, err
	}

	w.notify(ctx, project.CreatorID, NotifyStarted, record, map[string]interface{}{
		"project_name": project.Name,
		"message":      fmt.Sprintf("Verification of %s has started", project.Name),
	})
	w.scheduleDeadlines(ctx, record, now)
	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionStarted,
		map[string]interface{}{"status": from}, map[string]interface{}{"status": to, "started_at": now}, nil)

	return record, nil
}

func (w *Workflow) closeOrphan(ctx context.Context, actor auth.Principal, record *Record) {
	to, err := w.fire(record, EventOrphan)
	if err != nil {
		w.logger.Error("cannot close orphaned verification",
			zap.String("verification_id", record.ID.String()), zap.Error(err))
		return
	}

	from := record.Status
	now := w.clock.Now()
	reason := "Associated project no longer exists"
	record.Status = to
	record.CompletedAt = &now
	record.RejectionReason = &reason
	record.Notes = appendNote(record.Notes, "Closed automatically: the associated project was not found when the review started.")
	if err := w.repo.UpdateFrom(ctx, record, from); err != nil {
		w.logger.Error("failed to close orphaned verification",
			zap.String("verification_id", record.ID.String()), zap.Error(err))
		return
	}

	w.logger.Error("verification references a missing project, closed as rejected",
		zap.String("verification_id", record.ID.String()),
		zap.String("project_id", record.ProjectID.String()))
	w.refreshWorkload(ctx, record.VerifierID)
	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionOrphaned,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": to, "rejection_reason": reason},
		map[string]interface{}{"project_id": record.ProjectID.String()})
}

func (w *Workflow) scheduleDeadlines(ctx context.Context, record *Record, now time.Time) {
	if w.scheduler == nil {
		return
	}

	for _, days := range reminderOffsets {
		at := record.DueDate.AddDate(0, 0, -days)
		if !at.After(now) {
			continue
		}
		_, err := w.scheduler.ScheduleAt(ctx, at, JobDeadlineReminder, map[string]interface{}{
			"verification_id": record.ID.String(),
			"days_remaining":  days,
		})
		if err != nil {
			w.logger.Error("failed to schedule deadline reminder",
				zap.String("verification_id", record.ID.String()), zap.Int("days_remaining", days), zap.Error(err))
		}
	}

	_, err := w.scheduler.ScheduleAt(ctx, record.DueDate, JobOverdueCheck, map[string]interface{}{
		"verification_id": record.ID.String(),
	})
	if err != nil {
		w.logger.Error("failed to schedule overdue check",
			zap.String("verification_id", record.ID.String()), zap.Error(err))
	}
}

// UpdateChecklist sets one category's score and notes and recomputes the overall score
func (w *Workflow) UpdateChecklist(ctx context.Context, actor auth.Principal, id uuid.UUID, req ChecklistUpdate) (*Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	record, err := w.ownedRecord(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := w.fire(record, EventUpdateChecklist); err != nil {
		return nil, err
	}

	now := w.clock.Now()
	categories := Categories{}
	for k, v := range record.Categories.Data() {
		categories[k] = v
	}
	before := categories[req.Category]
	beforeOverall := record.OverallScore

	score := *req.Score
	entry := before
	entry.Score = &score
	if req.Notes != "" {
		entry.Notes = req.Notes
	}
	entry.UpdatedAt = &now
	categories[req.Category] = entry

	record.Categories = datatypes.NewJSONType(categories)
	record.OverallScore = categories.OverallScore()
	if err := w.repo.Update(ctx, record); err != nil {
		return nil, err
	}

	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionChecklistUpdated,
		map[string]interface{}{"category": req.Category, "score": before.Score, "notes": before.Notes, "overall_score": beforeOverall},
		map[string]interface{}{"category": req.Category, "score": entry.Score, "notes": entry.Notes, "overall_score": record.OverallScore},
		nil)
	return record, nil
}

// AddAnnotation pins a reviewer note to a project document
func (w *Workflow) AddAnnotation(ctx context.Context, actor auth.Principal, id uuid.UUID, req AnnotationRequest) (*Annotation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	record, err := w.ownedRecord(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if _, err := w.fire(record, EventAnnotate); err != nil {
		return nil, err
	}

	annotation := Annotation{
		ID:         uuid.New(),
		DocumentID: req.DocumentID,
		Page:       req.Page,
		Text:       req.Text,
		AuthorID:   actor.UserID,
		CreatedAt:  w.clock.Now(),
	}
	annotations := append(append([]Annotation{}, record.Annotations.Data()...), annotation)
	record.Annotations = datatypes.NewJSONType(annotations)
	if err := w.repo.Update(ctx, record); err != nil {
		return nil, err
	}

	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionAnnotated, nil,
		map[string]interface{}{"annotation_id": annotation.ID.String(), "document_id": annotation.DocumentID, "page": annotation.Page},
		nil)
	return &annotation, nil
}

// Complete records the verifier's recommendation and maps it onto the project
func (w *Workflow) Complete(ctx context.Context, actor auth.Principal, id uuid.UUID, req CompleteRequest) (*Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	record, err := w.ownedRecord(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	outcome := completionOutcomes[req.Recommendation]
	to, err := w.fire(record, outcome.event)
	if err != nil {
		return nil, err
	}

	project, err := w.requireProject(ctx, record.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			w.logger.Error("cannot complete verification of a missing project",
				zap.String("verification_id", record.ID.String()),
				zap.String("project_id", record.ProjectID.String()))
		}
		return nil, err
	}

	previous := *record
	from := record.Status
	now := w.clock.Now()
	record.Status = to
	record.CompletedAt = &now
	record.QualityScore = req.QualityScore
	record.Notes = appendNote(record.Notes, req.Notes)
	if req.Recommendation == RecommendationRejected {
		record.RejectionReason = req.RejectionReason
	}
	if req.Recommendation == RecommendationRevisionRequired {
		record.RevisionRequests = req.RevisionRequests
	}
	if err := w.repo.UpdateFrom(ctx, record, from); err != nil {
		return nil, err
	}

	if err := w.projects.PatchProjectStatus(ctx, project.ID, directory.ProjectPatch{
		Status:             &outcome.projectStatus,
		VerificationStatus: &outcome.verificationStatus,
	}); err != nil {
		w.restore(ctx, &previous, to)
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	w.notify(ctx, project.CreatorID, NotifyCompleted, record, map[string]interface{}{
		"project_name":   project.Name,
		"recommendation": req.Recommendation,
		"message":        fmt.Sprintf("Verification of %s completed: %s", project.Name, req.Recommendation),
	})
	w.refreshWorkload(ctx, record.VerifierID)
	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionCompleted,
		map[string]interface{}{"status": from, "project_status": project.Status, "verification_status": project.VerificationStatus},
		map[string]interface{}{"status": to, "project_status": outcome.projectStatus, "verification_status": outcome.verificationStatus},
		map[string]interface{}{"quality_score": record.QualityScore, "overall_score": record.OverallScore})

	w.logger.Info("verification completed",
		zap.String("verification_id", record.ID.String()),
		zap.String("recommendation", string(req.Recommendation)))

	return record, nil
}

// restore puts back a record whose completion never reached the project, so
// the verifier can complete it again.
func (w *Workflow) restore(ctx context.Context, previous *Record, current Status) {
	if err := w.repo.UpdateFrom(ctx, previous, current); err != nil {
		w.logger.Error("failed to restore verification after project update failed",
			zap.String("verification_id", previous.ID.String()), zap.Error(err))
	}
}

// =====================================================
// Administrative moves
// =====================================================

// Reassign hands an active verification to another verifier. The old record is
// superseded and a replacement keeps the due date and priority.
func (w *Workflow) Reassign(ctx context.Context, actor auth.Principal, id uuid.UUID, req ReassignRequest) (*Record, error) {
	if err := auth.RequireAdmin(actor, "reassign verifications"); err != nil {
		return nil, err
	}
	old, err := w.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !old.IsActive() {
		return nil, fmt.Errorf("%w: verification %s is no longer active", workflows.ErrInvalidTransition, old.ID)
	}
	if req.VerifierID == old.VerifierID {
		return nil, fmt.Errorf("%w: verification is already assigned to %s", apperrors.ErrValidation, req.VerifierID)
	}

	verifier, err := w.users.GetUser(ctx, req.VerifierID)
	if err != nil {
		return nil, err
	}
	if !verifier.IsVerifier() || !verifier.IsActive {
		return nil, fmt.Errorf("%w: user %s is not an active verifier", apperrors.ErrValidation, verifier.ID)
	}
	project, err := w.requireProject(ctx, old.ProjectID)
	if err != nil {
		return nil, err
	}

	now := w.clock.Now()
	stats, err := w.repo.VerifierStats(ctx, verifier.ID, now)
	if err != nil {
		return nil, err
	}

	replacement := &Record{
		ID:               uuid.New(),
		ProjectID:        old.ProjectID,
		VerifierID:       verifier.ID,
		Status:           StatusAssigned,
		Priority:         old.Priority,
		AssignedAt:       now,
		DueDate:          old.DueDate,
		VerifierWorkload: stats.Workload(),
		Categories:       datatypes.NewJSONType(Categories{}),
		Annotations:      datatypes.NewJSONType([]Annotation{}),
		Notes:            appendNote("", fmt.Sprintf("Reassigned from verification %s. %s", old.ID, req.Reason)),
	}

	old.SupersededBy = &replacement.ID
	old.SupersededAt = &now
	if err := w.repo.Supersede(ctx, old, replacement); err != nil {
		return nil, err
	}

	if err := w.projects.PatchProjectStatus(ctx, project.ID, directory.ProjectPatch{
		AssignedVerifierID: &verifier.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to update project assignment: %w", err)
	}

	w.notify(ctx, old.VerifierID, NotifyReassigned, old, map[string]interface{}{
		"project_name": project.Name,
		"message":      fmt.Sprintf("Verification of %s was reassigned to another verifier", project.Name),
	})
	w.notify(ctx, verifier.ID, NotifyAssigned, replacement, map[string]interface{}{
		"project_name": project.Name,
		"priority":     replacement.Priority,
		"message":      fmt.Sprintf("You have been assigned to verify %s, due %s", project.Name, replacement.DueDate.Format("2006-01-02")),
	})
	w.refreshWorkload(ctx, old.VerifierID)
	w.refreshWorkload(ctx, verifier.ID)

	meta := map[string]interface{}{"reason": req.Reason, "replacement_id": replacement.ID.String()}
	w.appendAudit(ctx, actor, audit.EntityVerification, old.ID, ActionReassigned,
		map[string]interface{}{"verifier_id": old.VerifierID.String()},
		map[string]interface{}{"verifier_id": verifier.ID.String()}, meta)
	w.appendAudit(ctx, actor, audit.EntityVerification, replacement.ID, ActionCreated, nil,
		map[string]interface{}{"status": replacement.Status, "verifier_id": verifier.ID.String(), "due_date": replacement.DueDate},
		map[string]interface{}{"supersedes": old.ID.String()})

	return replacement, nil
}

// MoveAssignment points a not-yet-accepted record at another verifier in place.
// Used by workload rebalancing; the due date is kept and workload counters are
// left to the caller.
func (w *Workflow) MoveAssignment(ctx context.Context, actor auth.Principal, id, toVerifierID uuid.UUID, reason string) (*Record, error) {
	if err := auth.RequireAdmin(actor, "rebalance workload"); err != nil {
		return nil, err
	}
	record, err := w.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusAssigned || record.SupersededBy != nil {
		return nil, fmt.Errorf("%w: only assigned verifications can be moved, %s is %s",
			workflows.ErrInvalidTransition, record.ID, record.Status)
	}

	project, err := w.requireProject(ctx, record.ProjectID)
	if err != nil {
		return nil, err
	}

	from := record.VerifierID
	record.VerifierID = toVerifierID
	record.AssignedAt = w.clock.Now()
	record.Notes = appendNote(record.Notes, reason)
	if err := w.repo.UpdateFrom(ctx, record, StatusAssigned); err != nil {
		return nil, err
	}
	if err := w.projects.PatchProjectStatus(ctx, project.ID, directory.ProjectPatch{
		AssignedVerifierID: &toVerifierID,
	}); err != nil {
		return nil, fmt.Errorf("failed to update project assignment: %w", err)
	}

	w.notify(ctx, toVerifierID, NotifyAssigned, record, map[string]interface{}{
		"project_name": project.Name,
		"priority":     record.Priority,
		"rebalanced":   true,
		"message":      fmt.Sprintf("%s was moved to you to balance workload, due %s", project.Name, record.DueDate.Format("2006-01-02")),
	})
	w.appendAudit(ctx, actor, audit.EntityVerification, record.ID, ActionRebalanced,
		map[string]interface{}{"verifier_id": from.String()},
		map[string]interface{}{"verifier_id": toVerifierID.String()},
		map[string]interface{}{"reason": reason})
	return record, nil
}

// RefreshWorkload recomputes the verifier's denormalised workload counter
func (w *Workflow) RefreshWorkload(ctx context.Context, verifierID uuid.UUID) error {
	stats, err := w.repo.VerifierStats(ctx, verifierID, w.clock.Now())
	if err != nil {
		return err
	}
	return w.users.SetWorkload(ctx, verifierID, stats.Workload())
}

func (w *Workflow) refreshWorkload(ctx context.Context, verifierID uuid.UUID) {
	if err := w.RefreshWorkload(ctx, verifierID); err != nil {
		w.logger.Warn("failed to refresh verifier workload",
			zap.String("verifier_id", verifierID.String()), zap.Error(err))
	}
}

// =====================================================
// Scheduled callbacks
// =====================================================

// RegisterJobs registers the deadline callbacks with a job runner
func (w *Workflow) RegisterJobs(register func(kind string, fn func(ctx context.Context, payload map[string]interface{}) error)) {
	register(JobDeadlineReminder, func(ctx context.Context, payload map[string]interface{}) error {
		id, err := payloadUUID(payload, "verification_id")
		if err != nil {
			return err
		}
		return w.HandleDeadlineReminder(ctx, id, payloadInt(payload, "days_remaining"))
	})
	register(JobOverdueCheck, func(ctx context.Context, payload map[string]interface{}) error {
		id, err := payloadUUID(payload, "verification_id")
		if err != nil {
			return err
		}
		return w.HandleOverdueCheck(ctx, id)
	})
}

// HandleDeadlineReminder reminds the verifier of an approaching due date.
// Records that already moved on are skipped.
func (w *Workflow) HandleDeadlineReminder(ctx context.Context, id uuid.UUID, daysRemaining int) error {
	record, ok, err := w.pendingDeadline(ctx, id)
	if err != nil || !ok {
		return err
	}

	w.notify(ctx, record.VerifierID, NotifyDeadlineReminder, record, map[string]interface{}{
		"days_remaining": daysRemaining,
		"due_date":       record.DueDate,
		"message":        fmt.Sprintf("Verification is due in %d day(s)", daysRemaining),
	})
	w.appendAudit(ctx, auth.SystemPrincipal(), audit.EntityVerification, record.ID, ActionDeadlineReminder, nil, nil,
		map[string]interface{}{"days_remaining": daysRemaining})
	return nil
}

// HandleOverdueCheck flags a verification still open past its due date
func (w *Workflow) HandleOverdueCheck(ctx context.Context, id uuid.UUID) error {
	record, ok, err := w.pendingDeadline(ctx, id)
	if err != nil || !ok {
		return err
	}
	now := w.clock.Now()
	if now.Before(record.DueDate) {
		return nil
	}

	w.notify(ctx, record.VerifierID, NotifyOverdue, record, map[string]interface{}{
		"due_date":     record.DueDate,
		"overdue_days": int(now.Sub(record.DueDate).Hours() / 24),
		"message":      fmt.Sprintf("Verification was due on %s and is now overdue", record.DueDate.Format("2006-01-02")),
	})
	w.appendAudit(ctx, auth.SystemPrincipal(), audit.EntityVerification, record.ID, ActionOverdueNotified, nil, nil,
		map[string]interface{}{"due_date": record.DueDate})
	return nil
}

// pendingDeadline loads the record and reports whether its deadline still matters
func (w *Workflow) pendingDeadline(ctx context.Context, id uuid.UUID) (*Record, bool, error) {
	record, err := w.repo.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		w.logger.Warn("deadline callback for unknown verification", zap.String("verification_id", id.String()))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if record.SupersededBy != nil || (record.Status != StatusAssigned && record.Status != StatusInProgress) {
		return nil, false, nil
	}
	return record, true, nil
}

// =====================================================
// Queries
// =====================================================

// Get returns a record visible to the actor: admins, its verifier and the project creator
func (w *Workflow) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Record, error) {
	record, err := w.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.canView(ctx, actor, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListForVerifier returns a verifier's records, optionally filtered by status
func (w *Workflow) ListForVerifier(ctx context.Context, actor auth.Principal, verifierID uuid.UUID, statuses ...Status) ([]Record, error) {
	if !actor.IsAdmin() && !actor.Is(verifierID) {
		return nil, fmt.Errorf("%w: cannot list another verifier's work", apperrors.ErrForbidden)
	}
	return w.repo.ListForVerifier(ctx, verifierID, statuses...)
}

// History returns the audit trail of a record
func (w *Workflow) History(ctx context.Context, actor auth.Principal, id uuid.UUID) ([]audit.Entry, error) {
	if _, err := w.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if w.trail == nil {
		return []audit.Entry{}, nil
	}
	return w.trail.ListByEntity(ctx, audit.EntityVerification, id)
}

// Stats returns the verifier's aggregate statistics as of now
func (w *Workflow) Stats(ctx context.Context, verifierID uuid.UUID) (*VerifierStats, error) {
	return w.repo.VerifierStats(ctx, verifierID, w.clock.Now())
}

// AssignedRecords returns the verifier's records that have not been accepted yet
func (w *Workflow) AssignedRecords(ctx context.Context, verifierID uuid.UUID) ([]Record, error) {
	return w.repo.ListForVerifier(ctx, verifierID, StatusAssigned)
}

func (w *Workflow) canView(ctx context.Context, actor auth.Principal, record *Record) error {
	if actor.IsAdmin() || actor.Is(record.VerifierID) {
		return nil
	}
	project, err := w.projects.GetProject(ctx, record.ProjectID)
	if err == nil && actor.Is(project.CreatorID) {
		return nil
	}
	return fmt.Errorf("%w: no access to verification %s", apperrors.ErrForbidden, record.ID)
}

// =====================================================
// Helpers
// =====================================================

// ownedRecord loads the record and checks the actor is its verifier
func (w *Workflow) ownedRecord(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Record, error) {
	record, err := w.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(record.VerifierID) {
		return nil, fmt.Errorf("%w: only the assigned verifier can change verification %s", apperrors.ErrForbidden, record.ID)
	}
	return record, nil
}

func (w *Workflow) fire(record *Record, event string) (Status, error) {
	if record.SupersededBy != nil {
		return "", fmt.Errorf("%w: verification %s was superseded", workflows.ErrInvalidTransition, record.ID)
	}
	to, err := w.machine.Fire(string(record.Status), event)
	if err != nil {
		return "", err
	}
	return Status(to), nil
}

func (w *Workflow) requireProject(ctx context.Context, id uuid.UUID) (*directory.Project, error) {
	project, err := w.projects.GetProject(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: associated project not found", apperrors.ErrNotFound)
	}
	return project, err
}

func (w *Workflow) notify(ctx context.Context, recipientID uuid.UUID, kind string, record *Record, payload map[string]interface{}) {
	if w.notifier == nil {
		return
	}
	payload["verification_id"] = record.ID.String()
	payload["project_id"] = record.ProjectID.String()
	if err := w.notifier.Notify(ctx, recipientID, kind, payload); err != nil {
		w.logger.Warn("failed to send notification",
			zap.String("kind", kind),
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err))
	}
}

func (w *Workflow) appendAudit(ctx context.Context, actor auth.Principal, entityType string, entityID uuid.UUID, action string, before, after, meta map[string]interface{}) {
	if w.audit == nil {
		return
	}
	entry := &audit.Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorRole:  string(actor.Role),
		Before:     before,
		After:      after,
		Metadata:   meta,
		CreatedAt:  w.clock.Now(),
	}
	if actor.System {
		entry.ActorRole = "system"
	} else {
		actorID := actor.UserID
		entry.ActorID = &actorID
	}
	if err := w.audit.Append(ctx, entry); err != nil {
		w.logger.Error("failed to append audit entry",
			zap.String("action", action),
			zap.String("entity_id", entityID.String()),
			zap.Error(err))
	}
}

func appendNote(existing, note string) string {
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	}
	return existing + "\n" + note
}

func payloadUUID(payload map[string]interface{}, key string) (uuid.UUID, error) {
	raw, ok := payload[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: payload missing %s", apperrors.ErrValidation, key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s: %v", apperrors.ErrValidation, key, err)
	}
	return id, nil
}

// payloadInt reads a number that may have round-tripped through JSON
func payloadInt(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
