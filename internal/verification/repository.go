package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// Repository persists verification records. Records are never deleted.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, record *Record) error
	// UpdateFrom saves the record only while the stored copy is still in status
	// from and not superseded. A lost race returns ErrConflict.
	UpdateFrom(ctx context.Context, record *Record, from Status) error
	// Supersede marks old as superseded and inserts its replacement in one
	// transaction. It fails with ErrConflict if old is no longer active.
	Supersede(ctx context.Context, old, replacement *Record) error
	// ActiveForProject returns the project's active record, or nil if there is none.
	ActiveForProject(ctx context.Context, projectID uuid.UUID) (*Record, error)
	// ListForVerifier returns the verifier's records in the given statuses,
	// oldest assignment first. Superseded records are left out.
	ListForVerifier(ctx context.Context, verifierID uuid.UUID, statuses ...Status) ([]Record, error)
	VerifierStats(ctx context.Context, verifierID uuid.UUID, now time.Time) (*VerifierStats, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a PostgreSQL-backed repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// activeProjectIndex allows at most one active record per project
const activeProjectIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_verifications_active_project
	ON verifications (project_id)
	WHERE status IN ('assigned', 'accepted', 'in_progress') AND superseded_by IS NULL`

// AutoMigrate creates or updates the verifications table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("failed to migrate verifications: %w", err)
	}
	if err := db.Exec(activeProjectIndex).Error; err != nil {
		return fmt.Errorf("failed to create active project index: %w", err)
	}
	return nil
}

func (r *gormRepository) Create(ctx context.Context, record *Record) error {
	return createRecord(r.db.WithContext(ctx), record)
}

// createRecord relies on the gorm handle translating driver errors so that a
// hit on the active project index surfaces as ErrDuplicatedKey.
func createRecord(db *gorm.DB, record *Record) error {
	err := db.Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: project %s already has an active verification", apperrors.ErrConflict, record.ProjectID)
	}
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: verification %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &record, nil
}

func (r *gormRepository) Update(ctx context.Context, record *Record) error {
	record.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}
	return nil
}

func (r *gormRepository) UpdateFrom(ctx context.Context, record *Record, from Status) error {
	record.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(record).
		Where("status = ? AND superseded_by IS NULL", from).
		Select("*").
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update verification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: verification %s is no longer %s", apperrors.ErrConflict, record.ID, from)
	}
	return nil
}

func (r *gormRepository) Supersede(ctx context.Context, old, replacement *Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Record{}).
			Where("id = ? AND status IN ? AND superseded_by IS NULL", old.ID, activeStatuses).
			Updates(map[string]interface{}{
				"superseded_by": old.SupersededBy,
				"superseded_at": old.SupersededAt,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to supersede verification: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: verification %s is no longer active", apperrors.ErrConflict, old.ID)
		}
		return createRecord(tx, replacement)
	})
}

func (r *gormRepository) ActiveForProject(ctx context.Context, projectID uuid.UUID) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status IN ? AND superseded_by IS NULL", projectID, activeStatuses).
		Order("assigned_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active verification: %w", err)
	}
	return &record, nil
}

func (r *gormRepository) ListForVerifier(ctx context.Context, verifierID uuid.UUID, statuses ...Status) ([]Record, error) {
	query := r.db.WithContext(ctx).
		Where("verifier_id = ? AND superseded_by IS NULL", verifierID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var records []Record
	if err := query.Order("assigned_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	return records, nil
}

const verifierStatsQuery = `
	SELECT
		COUNT(*) FILTER (WHERE status IN ? AND superseded_by IS NULL) AS pending,
		COUNT(*) FILTER (WHERE status = ? AND superseded_by IS NULL) AS in_progress,
		COUNT(*) FILTER (WHERE status IN ? AND completed_at >= ?) AS completed_this_month,
		COALESCE(AVG(quality_score) FILTER (WHERE status IN ? AND quality_score IS NOT NULL), 0) AS average_score,
		COUNT(*) FILTER (WHERE status IN ? AND completed_at <= due_date) AS on_time_completions,
		COUNT(*) FILTER (WHERE status IN ?) AS total_verifications,
		COUNT(*) FILTER (WHERE status IN ? AND superseded_by IS NULL AND due_date < ?) AS overdue_verifications
	FROM verifications
	WHERE verifier_id = ?`

func (r *gormRepository) VerifierStats(ctx context.Context, verifierID uuid.UUID, now time.Time) (*VerifierStats, error) {
	var stats VerifierStats
	err := r.db.WithContext(ctx).Raw(verifierStatsQuery,
		[]Status{StatusAssigned, StatusAccepted},
		StatusInProgress,
		completedStatuses, monthStart(now),
		completedStatuses,
		completedStatuses,
		completedStatuses,
		activeStatuses, now,
		verifierID,
	).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute verifier stats: %w", err)
	}
	return &stats, nil
}

func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
