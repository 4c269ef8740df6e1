package verification

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

func TestReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.started(t)

	score := 72.5
	_, err := f.workflow.UpdateChecklist(ctx, f.verifier, record.ID, ChecklistUpdate{
		Category: CategoryLocation,
		Score:    &score,
		Notes:    "Boundaries match the survey",
	})
	require.NoError(t, err)
	_, err = f.workflow.AddAnnotation(ctx, f.verifier, record.ID, AnnotationRequest{
		DocumentID: "pdd.pdf",
		Page:       4,
		Text:       "Baseline year differs from the monitoring plan",
	})
	require.NoError(t, err)

	data, err := f.workflow.Report(ctx, f.admin, record.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = f.workflow.Report(ctx, f.other, record.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestChecklistTableListsEveryCategory(t *testing.T) {
	score := 90.0
	table := checklistTable(Categories{CategoryFeasibility: {Score: &score}})

	require.Len(t, table.Rows, len(CategoryWeights))
	assert.Equal(t, "documentation", table.Rows[0]["category"])
	assert.Equal(t, "-", table.Rows[0]["score"])
	assert.Equal(t, "feasibility", table.Rows[2]["category"])
	assert.Equal(t, 90.0, table.Rows[2]["score"])
	assert.Equal(t, 0.20, table.Rows[2]["weight"])
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", joinLines(nil))
	assert.Equal(t, "- a\n- b", joinLines([]string{"a", "b"}))
}

func TestHandlerReport(t *testing.T) {
	f := newFixture(t)
	router, issuer := setupRouter(t, f)
	record := f.create(t, 5*24*time.Hour)

	w := doRequest(t, router, tokenFor(t, issuer, f.verifier), http.MethodGet,
		"/api/v1/verifications/"+record.ID.String()+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), record.ID.String())
}
