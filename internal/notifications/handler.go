package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/httpx"
	"carbon-scribe/project-portal/verification-backend/internal/notifications/websocket"
)

// Handler serves the caller's notifications and the WebSocket stream
type Handler struct {
	service *Service
	sockets *websocket.Manager
	logger  *zap.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *Service, sockets *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, sockets: sockets, logger: logger}
}

// RegisterRoutes registers notification routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.POST("/:id/read", h.MarkRead)
	}
	rg.GET("/ws", h.Stream)
}

// List returns the caller's notifications
func (h *Handler) List(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	unreadOnly := c.Query("unread") == "true"

	items, err := h.service.ListForUser(c.Request.Context(), principal.UserID, unreadOnly, limit)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// MarkRead marks a notification as read
func (h *Handler) MarkRead(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "Invalid notification ID")
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), principal.UserID, id); err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream upgrades to a WebSocket carrying the caller's notifications
func (h *Handler) Stream(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if _, err := h.sockets.HandleConnection(c.Writer, c.Request, principal.UserID.String()); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}
