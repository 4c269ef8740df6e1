package verification

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/httpx"
)

// Handler exposes the verification workflow over HTTP
type Handler struct {
	workflow *Workflow
	logger   *zap.Logger
}

// NewHandler creates a new verification handler
func NewHandler(workflow *Workflow, logger *zap.Logger) *Handler {
	return &Handler{workflow: workflow, logger: logger}
}

// RegisterRoutes registers verification routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/submit", h.SubmitProject)

	verifications := rg.Group("/verifications")
	{
		verifications.POST("", auth.RequireRole(directory.RoleAdmin), h.Create)
		verifications.GET("/mine", h.Mine)
		verifications.GET("/:id", h.Get)
		verifications.GET("/:id/history", h.History)
		verifications.GET("/:id/report", h.Report)
		verifications.POST("/:id/accept", h.Accept)
		verifications.POST("/:id/start", h.Start)
		verifications.PUT("/:id/checklist", h.UpdateChecklist)
		verifications.POST("/:id/annotations", h.AddAnnotation)
		verifications.POST("/:id/complete", h.Complete)
		verifications.POST("/:id/reassign", auth.RequireRole(directory.RoleAdmin), h.Reassign)
	}

	verifiers := rg.Group("/verifiers")
	{
		verifiers.GET("/:id/verifications", h.ListForVerifier)
		verifiers.GET("/:id/stats", h.Stats)
	}
}

// SubmitProject submits a project for verification
func (h *Handler) SubmitProject(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	result, err := h.workflow.SubmitProject(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create assigns a verifier to a project
func (h *Handler) Create(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	record, err := h.workflow.CreateVerification(c.Request.Context(), principal, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// Get returns a verification record with the events it currently accepts
func (h *Handler) Get(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	record, err := h.workflow.Get(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verification":   record,
		"allowed_events": h.workflow.AllowedEvents(record),
	})
}

// History returns the audit trail of a verification
func (h *Handler) History(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	entries, err := h.workflow.History(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// Report downloads a verification as a PDF
func (h *Handler) Report(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	data, err := h.workflow.Report(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="verification-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Accept acknowledges an assignment
func (h *Handler) Accept(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	record, err := h.workflow.Accept(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Start begins the review
func (h *Handler) Start(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	record, err := h.workflow.Start(c.Request.Context(), principal, id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateChecklist scores one checklist category
func (h *Handler) UpdateChecklist(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req ChecklistUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	record, err := h.workflow.UpdateChecklist(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// AddAnnotation pins a note to a document
func (h *Handler) AddAnnotation(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req AnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	annotation, err := h.workflow.AddAnnotation(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, annotation)
}

// Complete records the verifier's recommendation
func (h *Handler) Complete(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	record, err := h.workflow.Complete(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Reassign hands a verification to another verifier
func (h *Handler) Reassign(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	record, err := h.workflow.Reassign(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListForVerifier lists a verifier's records, optionally filtered with ?status=a,b
func (h *Handler) ListForVerifier(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	records, err := h.workflow.ListForVerifier(c.Request.Context(), principal, id, parseStatuses(c.Query("status"))...)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": records, "count": len(records)})
}

// Mine lists the caller's own verifications
func (h *Handler) Mine(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	records, err := h.workflow.ListForVerifier(c.Request.Context(), principal, principal.UserID, parseStatuses(c.Query("status"))...)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": records, "count": len(records)})
}

// Stats returns a verifier's aggregate statistics
func (h *Handler) Stats(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if !principal.IsAdmin() && !principal.Is(id) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot view another verifier's statistics"})
		return
	}

	stats, err := h.workflow.Stats(c.Request.Context(), id)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"workload":     stats.Workload(),
		"on_time_rate": stats.OnTimeRate(),
	})
}

func (h *Handler) principalAndID(c *gin.Context) (auth.Principal, uuid.UUID, bool) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return auth.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "Invalid ID")
		return auth.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

func parseStatuses(raw string) []Status {
	if raw == "" {
		return nil
	}
	var statuses []Status
	for _, s := range strings.Split(raw, ",") {
		statuses = append(statuses, Status(strings.TrimSpace(s)))
	}
	return statuses
}
