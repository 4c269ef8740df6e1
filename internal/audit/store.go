package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store appends and reads audit entries. Entries are never updated or removed.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a PostgreSQL-backed audit store
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// AutoMigrate creates or updates the audit table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate audit log: %w", err)
	}
	return nil
}

func (s *gormStore) Append(ctx context.Context, entry *Entry) error {
	entry.prepare()
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *gormStore) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// MemoryStore keeps entries in memory for tests and the in-memory mode
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory audit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry *Entry) error {
	entry.prepare()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Actions returns every recorded action in append order
func (s *MemoryStore) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actions := make([]string, len(s.entries))
	for i, e := range s.entries {
		actions[i] = e.Action
	}
	return actions
}
