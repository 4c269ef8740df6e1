package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// Repository persists one-shot jobs
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	// Cancel moves a pending job to cancelled. Jobs already running or finished are left alone.
	Cancel(ctx context.Context, id uuid.UUID) error
	// ClaimDue marks up to limit pending jobs due at now as running and returns them.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a PostgreSQL-backed job repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the jobs table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return fmt.Errorf("failed to migrate scheduled jobs: %w", err)
	}
	return nil
}

func (r *gormRepository) Create(ctx context.Context, job *Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (r *gormRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobStatusPending).
		Updates(map[string]interface{}{"status": JobStatusCancelled, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}

func (r *gormRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	var jobs []Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", JobStatusPending, now).
			Order("run_at ASC").
			Limit(limit).
			Find(&jobs).Error
		if err != nil || len(jobs) == 0 {
			return err
		}

		ids := make([]uuid.UUID, len(jobs))
		for i := range jobs {
			ids[i] = jobs[i].ID
			jobs[i].Status = JobStatusRunning
			jobs[i].Attempts++
		}
		return tx.Model(&Job{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":     JobStatusRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	return jobs, nil
}

func (r *gormRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, map[string]interface{}{"status": JobStatusDone, "last_error": ""})
}

func (r *gormRepository) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	return r.setStatus(ctx, id, map[string]interface{}{"status": JobStatusPending, "run_at": runAt, "last_error": lastError})
}

func (r *gormRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.setStatus(ctx, id, map[string]interface{}{"status": JobStatusFailed, "last_error": lastError})
}

func (r *gormRepository) setStatus(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	if err := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return nil
}

// MemoryRepository keeps jobs in memory for tests and the in-memory mode
type MemoryRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]Job
}

// NewMemoryRepository creates an empty in-memory job repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[uuid.UUID]Job)}
}

func (r *MemoryRepository) Create(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
	}
	return &job, nil
}

func (r *MemoryRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok && job.Status == JobStatusPending {
		job.Status = JobStatusCancelled
		r.jobs[id] = job
	}
	return nil
}

func (r *MemoryRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []Job
	for _, job := range r.jobs {
		if job.Status == JobStatusPending && !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].RunAt.Before(due[j].RunAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = JobStatusRunning
		due[i].Attempts++
		r.jobs[due[i].ID] = due[i]
	}
	return due, nil
}

func (r *MemoryRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(j *Job) { j.Status = JobStatusDone; j.LastError = "" })
}

func (r *MemoryRepository) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	return r.update(id, func(j *Job) { j.Status = JobStatusPending; j.RunAt = runAt; j.LastError = lastError })
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.update(id, func(j *Job) { j.Status = JobStatusFailed; j.LastError = lastError })
}

func (r *MemoryRepository) update(id uuid.UUID, fn func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
	}
	fn(&job)
	job.UpdatedAt = time.Now()
	r.jobs[id] = job
	return nil
}

// Pending returns pending jobs ordered by due time
func (r *MemoryRepository) Pending() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Job
	for _, job := range r.jobs {
		if job.Status == JobStatusPending {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RunAt.Before(out[j].RunAt)
	})
	return out
}
