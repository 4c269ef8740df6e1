package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// Handler serves the caller's identity
type Handler struct {
	users  directory.UserDirectory
	logger *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(users directory.UserDirectory, logger *zap.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// RegisterRoutes registers auth routes on a group already guarded by Middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.GET("/me", h.Me)
	}
}

// Me returns the principal and its directory profile
func (h *Handler) Me(c *gin.Context) {
	principal, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("failed to load current user", zap.Error(err), zap.String("user_id", principal.UserID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"principal": principal, "user": user})
}
