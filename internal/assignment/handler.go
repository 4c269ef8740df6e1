package assignment

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/httpx"
)

// DefaultRebalanceDiff is used when a rebalance request does not set one
const DefaultRebalanceDiff = 2

// Handler exposes verifier assignment over HTTP
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new assignment handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers assignment routes. Everything here is admin only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	assignments := rg.Group("/assignments", auth.RequireRole(directory.RoleAdmin))
	{
		assignments.GET("/projects/:id/optimal", h.GetOptimalVerifier)
		assignments.GET("/projects/:id/ranked", h.GetRankedVerifiers)
		assignments.POST("/projects/:id/auto-assign", h.AutoAssign)
		assignments.POST("/batch", h.BatchAutoAssign)
		assignments.GET("/workload", h.GetWorkloadDistribution)
		assignments.GET("/workload/export", h.ExportWorkload)
		assignments.POST("/rebalance", h.RebalanceWorkload)
		assignments.GET("/recommendations", h.GetRecommendations)
	}
}

// GetOptimalVerifier returns the best verifier for a project
func (h *Handler) GetOptimalVerifier(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "Invalid project ID")
		return
	}
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	best, err := h.service.GetOptimalVerifier(c.Request.Context(), projectID, criteria)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	if best == nil {
		c.JSON(http.StatusOK, gin.H{"verifier": nil, "reason": "No active verifiers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifier": best})
}

// GetRankedVerifiers returns verifiers ranked for a project
func (h *Handler) GetRankedVerifiers(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "Invalid project ID")
		return
	}
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	limit, err := intQuery(c, "limit", 5)
	if err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	ranked, err := h.service.GetRankedVerifiers(c.Request.Context(), projectID, criteria, limit)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifiers": ranked, "count": len(ranked)})
}

// AutoAssign assigns a project to its best eligible verifier
func (h *Handler) AutoAssign(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpx.BadRequest(c, "Invalid project ID")
		return
	}

	var req AutoAssignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err.Error())
			return
		}
	}
	req.ProjectID = projectID

	result, err := h.service.AutoAssignVerifier(c.Request.Context(), principal, req)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if result.Assigned {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

type batchRequest struct {
	ProjectIDs []uuid.UUID `json:"project_ids" binding:"required,min=1"`
	Criteria   Criteria    `json:"criteria"`
}

// BatchAutoAssign auto-assigns several projects
func (h *Handler) BatchAutoAssign(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.BatchAutoAssign(c.Request.Context(), principal, req.ProjectIDs, req.Criteria)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetWorkloadDistribution returns every active verifier's load
func (h *Handler) GetWorkloadDistribution(c *gin.Context) {
	entries, err := h.service.GetWorkloadDistribution(c.Request.Context())
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifiers": entries, "count": len(entries)})
}

// ExportWorkload downloads the workload distribution
func (h *Handler) ExportWorkload(c *gin.Context) {
	format := c.DefaultQuery("format", FormatXLSX)

	data, err := h.service.ExportWorkload(c.Request.Context(), format)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	switch format {
	case FormatCSV:
		contentType = "text/csv"
	case FormatPDF:
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="verifier-workload.%s"`, format))
	c.Data(http.StatusOK, contentType, data)
}

type rebalanceRequest struct {
	MaxWorkloadDiff *int `json:"max_workload_diff"`
}

// RebalanceWorkload moves work from overloaded to underloaded verifiers
func (h *Handler) RebalanceWorkload(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req rebalanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err.Error())
			return
		}
	}
	diff := DefaultRebalanceDiff
	if req.MaxWorkloadDiff != nil {
		diff = *req.MaxWorkloadDiff
	}

	result, err := h.service.RebalanceWorkload(c.Request.Context(), principal, diff)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRecommendations suggests verifiers for unassigned projects
func (h *Handler) GetRecommendations(c *gin.Context) {
	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}

	recs, err := h.service.GetAssignmentRecommendations(c.Request.Context(), limit)
	if err != nil {
		httpx.WriteError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
}

// criteriaFromQuery reads require_specialty, max_workload, priority_boost,
// balance_workload and repeated exclude parameters
func criteriaFromQuery(c *gin.Context) (Criteria, error) {
	var criteria Criteria
	var err error

	boolParam := func(name string) bool {
		if err != nil {
			return false
		}
		raw := c.Query(name)
		if raw == "" {
			return false
		}
		var v bool
		v, err = strconv.ParseBool(raw)
		if err != nil {
			err = fmt.Errorf("invalid %s: %q", name, raw)
		}
		return v
	}
	criteria.RequireSpecialty = boolParam("require_specialty")
	criteria.PriorityBoost = boolParam("priority_boost")
	criteria.BalanceWorkload = boolParam("balance_workload")
	if err != nil {
		return Criteria{}, err
	}

	if raw := c.Query("max_workload"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Criteria{}, fmt.Errorf("invalid max_workload: %q", raw)
		}
		criteria.MaxWorkload = &n
	}

	for _, raw := range c.QueryArray("exclude") {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid exclude: %q", raw)
		}
		criteria.ExcludeVerifiers = append(criteria.ExcludeVerifiers, id)
	}
	return criteria, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
