package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// Repository stores in-app notifications and delivery logs
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error
	LogDelivery(ctx context.Context, entry *DeliveryLog) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a PostgreSQL-backed notification repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the notification tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Notification{}, &DeliveryLog{}); err != nil {
		return fmt.Errorf("failed to migrate notifications: %w", err)
	}
	return nil
}

func (r *gormRepository) Create(ctx context.Context, n *Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *gormRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var out []Notification
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get user notifications: %w", err)
	}
	return out, nil
}

func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: notification %s", apperrors.ErrNotFound, notificationID)
	}
	return nil
}

func (r *gormRepository) LogDelivery(ctx context.Context, entry *DeliveryLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log delivery: %w", err)
	}
	return nil
}

// MemoryRepository keeps notifications in memory
type MemoryRepository struct {
	mu            sync.RWMutex
	notifications []Notification
	deliveries    []DeliveryLog
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *MemoryRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Notification
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID == notificationID && r.notifications[i].UserID == userID {
			r.notifications[i].ReadAt = &at
			return nil
		}
	}
	return fmt.Errorf("%w: notification %s", apperrors.ErrNotFound, notificationID)
}

func (r *MemoryRepository) LogDelivery(ctx context.Context, entry *DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, *entry)
	return nil
}

// Deliveries returns the logged channel attempts
func (r *MemoryRepository) Deliveries() []DeliveryLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DeliveryLog(nil), r.deliveries...)
}
