package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// Principal is the caller an operation runs on behalf of
type Principal struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   directory.Role `json:"role"`
	// System marks scheduled jobs and internal callers. It passes every admin check.
	System bool `json:"system,omitempty"`
}

// SystemPrincipal is used by cron jobs and the auto-assignment path
func SystemPrincipal() Principal {
	return Principal{Role: directory.RoleAdmin, System: true}
}

// IsAdmin reports whether the principal may run administrative operations
func (p Principal) IsAdmin() bool {
	return p.System || p.Role == directory.RoleAdmin
}

// Is reports whether the principal is the given user
func (p Principal) Is(userID uuid.UUID) bool {
	return !p.System && p.UserID == userID
}

// RequireAdmin returns ErrForbidden unless the principal is an admin or the system
func RequireAdmin(p Principal, action string) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: only administrators can %s", apperrors.ErrForbidden, action)
	}
	return nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
