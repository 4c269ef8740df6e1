package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
)

// Service stores in-app notifications and fans them out to the configured channels
type Service struct {
	repo     Repository
	users    directory.UserDirectory
	channels []Channel
	logger   *zap.Logger
}

// NewService creates a new notification service
func NewService(repo Repository, users directory.UserDirectory, logger *zap.Logger, channels ...Channel) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		channels: channels,
		logger:   logger,
	}
}

// Notify records a notification for the recipient and pushes it over every
// channel. Channel failures are logged and do not fail the call.
func (s *Service) Notify(ctx context.Context, recipientID uuid.UUID, kind string, payload map[string]interface{}) error {
	recipient, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}

	n := &Notification{
		ID:        uuid.New(),
		UserID:    recipientID,
		Kind:      kind,
		Title:     titleFor(kind),
		Body:      bodyFor(payload),
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	for _, ch := range s.channels {
		s.deliver(ctx, ch, recipient, n)
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, ch Channel, recipient *directory.User, n *Notification) {
	entry := &DeliveryLog{
		ID:             uuid.New(),
		NotificationID: n.ID,
		Channel:        ch.Name(),
		Status:         StatusSent,
		Timestamp:      time.Now(),
	}

	providerID, err := ch.Send(ctx, recipient, n)
	switch {
	case errors.Is(err, ErrSkipped):
		entry.Status = StatusSkipped
	case err != nil:
		entry.Status = StatusFailed
		entry.Error = err.Error()
		s.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)
	default:
		entry.ProviderID = providerID
		if ch.Name() == ChannelWebSocket {
			entry.Status = StatusDelivered
		}
	}

	if err := s.repo.LogDelivery(ctx, entry); err != nil {
		s.logger.Error("failed to log notification delivery", zap.Error(err))
	}
}

// ListForUser returns the user's notifications, newest first
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, notificationID, time.Now())
}

var titles = map[string]string{
	"verification_assigned":   "New verification assigned",
	"verification_started":    "Verification started",
	"verification_completed":  "Verification completed",
	"verification_reassigned": "Verification reassigned",
	"deadline_reminder":       "Verification deadline approaching",
	"verification_overdue":    "Verification overdue",
}

func titleFor(kind string) string {
	if t, ok := titles[kind]; ok {
		return t
	}
	words := strings.ReplaceAll(kind, "_", " ")
	if words == "" {
		return "Notification"
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

func bodyFor(payload map[string]interface{}) string {
	if msg, ok := payload["message"].(string); ok {
		return msg
	}
	return ""
}
