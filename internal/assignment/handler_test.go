package assignment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
)

func setupRouter(t *testing.T, env *testEnv) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(issuer.Middleware())
	NewHandler(env.service, zap.NewNop()).RegisterRoutes(api)

	token, _, err := issuer.GenerateToken(env.admin.UserID, env.admin.Role)
	require.NoError(t, err)
	return router, token
}

func call(t *testing.T, router *gin.Engine, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	router, _ := setupRouter(t, env)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	token, _, err := issuer.GenerateToken(uuid.New(), directory.RoleVerifier)
	require.NoError(t, err)

	w := call(t, router, token, http.MethodGet, "/api/v1/assignments/workload", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, router, "", http.MethodGet, "/api/v1/assignments/workload", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerOptimalAndRanked(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	specialist := env.addVerifier(uuid.Nil, "Specialist", "solar")
	env.addVerifier(uuid.Nil, "Generalist", "finance")
	project := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)
	base := "/api/v1/assignments/projects/" + project.ID.String()

	w := call(t, router, token, http.MethodGet, base+"/optimal?require_specialty=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var optimal struct {
		Verifier VerifierScore `json:"verifier"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &optimal))
	assert.Equal(t, specialist, optimal.Verifier.VerifierID)

	w = call(t, router, token, http.MethodGet, base+"/ranked?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ranked struct {
		Verifiers []VerifierScore `json:"verifiers"`
		Count     int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranked))
	assert.Equal(t, 1, ranked.Count)

	w = call(t, router, token, http.MethodGet, base+"/ranked?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, router, token, http.MethodGet, base+"/optimal?max_workload=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, router, token, http.MethodGet, "/api/v1/assignments/projects/"+uuid.NewString()+"/optimal", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, router, token, http.MethodGet, "/api/v1/assignments/projects/nope/optimal", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerAutoAssign(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	verifier := env.addVerifier(uuid.Nil, "Ada", "wind")
	project := env.addProject(directory.ProjectTypeWind, directory.PriorityUrgent)
	unmatched := env.addProject(directory.ProjectTypeBiogas, directory.PriorityNormal)

	w := call(t, router, token, http.MethodPost, "/api/v1/assignments/projects/"+project.ID.String()+"/auto-assign", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result AutoAssignResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Assigned)
	assert.Equal(t, verifier, result.Verification.VerifierID)
	assert.True(t, env.clock.Now().Add(72*time.Hour).Equal(result.Verification.DueDate))

	w = call(t, router, token, http.MethodPost, "/api/v1/assignments/projects/"+unmatched.ID.String()+"/auto-assign",
		map[string]interface{}{"criteria": map[string]interface{}{"require_specialty": true}})
	require.Equal(t, http.StatusOK, w.Code)
	result = AutoAssignResult{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Assigned)

	w = call(t, router, token, http.MethodPost, "/api/v1/assignments/projects/"+project.ID.String()+"/auto-assign", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerBatch(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	env.addVerifier(uuid.Nil, "Ada", "solar")
	first := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)
	second := env.addProject(directory.ProjectTypeSolar, directory.PriorityLow)

	w := call(t, router, token, http.MethodPost, "/api/v1/assignments/batch", map[string]interface{}{
		"project_ids": []uuid.UUID{first.ID, second.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Assigned)
	assert.Zero(t, result.Failed)

	w = call(t, router, token, http.MethodPost, "/api/v1/assignments/batch", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerWorkloadAndRebalance(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	over := env.addVerifier(uuid.Nil, "Over", "environmental")
	mid := env.addVerifier(uuid.Nil, "Mid", "environmental")
	env.addVerifier(uuid.Nil, "Under", "environmental")
	env.seedRecords(t, over, verification.StatusAssigned, 8)
	env.seedRecords(t, mid, verification.StatusAssigned, 3)

	w := call(t, router, token, http.MethodGet, "/api/v1/assignments/workload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var distribution struct {
		Verifiers []WorkloadEntry `json:"verifiers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &distribution))
	require.Len(t, distribution.Verifiers, 3)
	assert.Equal(t, over, distribution.Verifiers[2].VerifierID)

	// ascending [0, 3, 8]: median 3, band (1, 5) by default
	w = call(t, router, token, http.MethodPost, "/api/v1/assignments/rebalance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result RebalanceResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Median)
	assert.Equal(t, 8, result.Reassignments)

	w = call(t, router, token, http.MethodPost, "/api/v1/assignments/rebalance", map[string]interface{}{"max_workload_diff": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerExport(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	env.addVerifier(uuid.Nil, "Ada", "solar")

	w := call(t, router, token, http.MethodGet, "/api/v1/assignments/workload/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "verifier-workload.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = call(t, router, token, http.MethodGet, "/api/v1/assignments/workload/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Ada")

	w = call(t, router, token, http.MethodGet, "/api/v1/assignments/workload/export?format=pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = call(t, router, token, http.MethodGet, "/api/v1/assignments/workload/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRecommendations(t *testing.T) {
	env := newTestEnv(t)
	router, token := setupRouter(t, env)
	env.addVerifier(uuid.Nil, "Ada", "solar")
	project := env.addProject(directory.ProjectTypeSolar, directory.PriorityHigh)

	w := call(t, router, token, http.MethodGet, "/api/v1/assignments/recommendations?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Recommendations []Recommendation `json:"recommendations"`
		Count           int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, project.ID, body.Recommendations[0].Project.ID)
	assert.Equal(t, float64(80), body.Recommendations[0].Urgency)
}
