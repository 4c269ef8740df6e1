package verification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// MemoryRepository keeps records in memory. It backs tests and the API's
// in-memory mode and computes statistics the same way the SQL query does.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]Record)}
}

func (r *MemoryRepository) Create(ctx context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insert(record)
}

// insert mirrors the active project index of the SQL schema. Callers hold mu.
func (r *MemoryRepository) insert(record *Record) error {
	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("%w: verification %s already exists", apperrors.ErrConflict, record.ID)
	}
	if record.IsActive() {
		for _, existing := range r.records {
			if existing.ProjectID == record.ProjectID && existing.IsActive() {
				return fmt.Errorf("%w: project %s already has an active verification", apperrors.ErrConflict, record.ProjectID)
			}
		}
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.ID] = *record
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: verification %s", apperrors.ErrNotFound, id)
	}
	return &record, nil
}

func (r *MemoryRepository) Update(ctx context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; !ok {
		return fmt.Errorf("%w: verification %s", apperrors.ErrNotFound, record.ID)
	}
	record.UpdatedAt = time.Now()
	r.records[record.ID] = *record
	return nil
}

func (r *MemoryRepository) UpdateFrom(ctx context.Context, record *Record, from Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[record.ID]
	if !ok {
		return fmt.Errorf("%w: verification %s", apperrors.ErrNotFound, record.ID)
	}
	if stored.Status != from || stored.SupersededBy != nil {
		return fmt.Errorf("%w: verification %s is no longer %s", apperrors.ErrConflict, record.ID, from)
	}
	record.UpdatedAt = time.Now()
	r.records[record.ID] = *record
	return nil
}

func (r *MemoryRepository) Supersede(ctx context.Context, old, replacement *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[old.ID]
	if !ok {
		return fmt.Errorf("%w: verification %s", apperrors.ErrNotFound, old.ID)
	}
	if !stored.IsActive() {
		return fmt.Errorf("%w: verification %s is no longer active", apperrors.ErrConflict, old.ID)
	}

	stored.SupersededBy = old.SupersededBy
	stored.SupersededAt = old.SupersededAt
	stored.UpdatedAt = time.Now()
	r.records[old.ID] = stored
	if err := r.insert(replacement); err != nil {
		stored.SupersededBy = nil
		stored.SupersededAt = nil
		r.records[old.ID] = stored
		return err
	}
	old.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) ActiveForProject(ctx context.Context, projectID uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ProjectID == projectID && record.IsActive() {
			found := record
			return &found, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListForVerifier(ctx context.Context, verifierID uuid.UUID, statuses ...Status) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []Record
	for _, record := range r.records {
		if record.VerifierID != verifierID || record.SupersededBy != nil {
			continue
		}
		if len(wanted) > 0 && !wanted[record.Status] {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out, nil
}

func (r *MemoryRepository) VerifierStats(ctx context.Context, verifierID uuid.UUID, now time.Time) (*VerifierStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result VerifierStats
	var qualityScores []float64
	start := monthStart(now)

	for _, record := range r.records {
		if record.VerifierID != verifierID {
			continue
		}
		switch {
		case record.IsActive():
			if record.Status == StatusInProgress {
				result.InProgress++
			} else {
				result.Pending++
			}
			if record.DueDate.Before(now) {
				result.OverdueVerifications++
			}
		case record.Status.IsCompleted():
			result.TotalVerifications++
			if record.CompletedAt != nil {
				if !record.CompletedAt.Before(start) {
					result.CompletedThisMonth++
				}
				if !record.CompletedAt.After(record.DueDate) {
					result.OnTimeCompletions++
				}
			}
			if record.QualityScore != nil {
				qualityScores = append(qualityScores, *record.QualityScore)
			}
		}
	}

	if len(qualityScores) > 0 {
		mean, err := stats.Mean(qualityScores)
		if err != nil {
			return nil, fmt.Errorf("failed to average quality scores: %w", err)
		}
		result.AverageScore = mean
	}
	return &result, nil
}
