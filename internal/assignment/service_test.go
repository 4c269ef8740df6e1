package assignment

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

type testEnv struct {
	service  *Service
	workflow *verification.Workflow
	repo     *verification.MemoryRepository
	dir      *directory.MemoryStore
	clock    *clock.Fixed
	admin    auth.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:  verification.NewMemoryRepository(),
		dir:   directory.NewMemoryStore(),
		clock: &clock.Fixed{T: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)},
		admin: auth.Principal{UserID: uuid.New(), Role: directory.RoleAdmin},
	}
	env.workflow = verification.NewWorkflow(verification.Dependencies{
		Repo:     env.repo,
		Users:    env.dir,
		Projects: env.dir,
		Clock:    env.clock,
		Logger:   zap.NewNop(),
	})
	env.service = NewService(env.dir, env.dir, env.workflow, env.clock, zap.NewNop(), Options{
		DefaultCriteria: Criteria{RequireSpecialty: true},
	})
	env.workflow.SetAssigner(env.service)
	return env
}

func (e *testEnv) addVerifier(id uuid.UUID, name string, specialties ...string) uuid.UUID {
	if id == uuid.Nil {
		id = uuid.New()
	}
	e.dir.PutUser(directory.User{
		ID:          id,
		FullName:    name,
		Role:        directory.RoleVerifier,
		IsActive:    true,
		Specialties: specialties,
	})
	return id
}

func (e *testEnv) addProject(projectType directory.ProjectType, priority directory.Priority) directory.Project {
	submitted := e.clock.Now()
	p := directory.Project{
		ID:                 uuid.New(),
		Name:               fmt.Sprintf("%s project", projectType),
		ProjectType:        projectType,
		Priority:           priority,
		SubmittedAt:        &submitted,
		CreatorID:          uuid.New(),
		Status:             directory.ProjectStatusSubmitted,
		VerificationStatus: directory.VerificationStatusPending,
	}
	e.dir.PutProject(p)
	return p
}

// seedRecords gives the verifier n verifications in the given status
func (e *testEnv) seedRecords(t *testing.T, verifierID uuid.UUID, status verification.Status, n int) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		project := e.addProject(directory.ProjectTypeReforestation, directory.PriorityNormal)
		assignedVerifier := verifierID
		project.AssignedVerifierID = &assignedVerifier
		project.VerificationStatus = directory.VerificationStatusInProgress
		e.dir.PutProject(project)

		record := &verification.Record{
			ID:         uuid.New(),
			ProjectID:  project.ID,
			VerifierID: verifierID,
			Status:     status,
			Priority:   directory.PriorityNormal,
			AssignedAt: e.clock.Now().Add(time.Duration(i) * time.Minute),
			DueDate:    e.clock.Now().Add(14 * 24 * time.Hour),
		}
		require.NoError(t, e.repo.Create(context.Background(), record))
		ids = append(ids, record.ID)
	}
	return ids
}

func (e *testEnv) workloadOf(t *testing.T, verifierID uuid.UUID) int {
	t.Helper()
	stats, err := e.workflow.Stats(context.Background(), verifierID)
	require.NoError(t, err)
	return stats.Workload()
}

func TestGetOptimalVerifier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	project := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)

	best, err := env.service.GetOptimalVerifier(ctx, project.ID, Criteria{})
	require.NoError(t, err)
	assert.Nil(t, best)

	generalist := env.addVerifier(uuid.Nil, "Generalist", "finance")
	specialist := env.addVerifier(uuid.Nil, "Specialist", "renewable_energy")
	env.seedRecords(t, specialist, verification.StatusInProgress, 2)

	best, err = env.service.GetOptimalVerifier(ctx, project.ID, Criteria{RequireSpecialty: true})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, specialist, best.VerifierID)
	assert.True(t, best.SpecialtyMatch)

	best, err = env.service.GetOptimalVerifier(ctx, project.ID, Criteria{ExcludeVerifiers: []uuid.UUID{specialist}})
	require.NoError(t, err)
	assert.Equal(t, generalist, best.VerifierID)

	_, err = env.service.GetOptimalVerifier(ctx, uuid.New(), Criteria{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOptimalVerifierTieBreak(t *testing.T) {
	env := newTestEnv(t)
	project := env.addProject(directory.ProjectTypeWind, directory.PriorityNormal)

	second := env.addVerifier(uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), "B", "wind")
	first := env.addVerifier(uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), "A", "wind")

	best, err := env.service.GetOptimalVerifier(context.Background(), project.ID, Criteria{})
	require.NoError(t, err)
	assert.Equal(t, first, best.VerifierID)

	ranked, err := env.service.GetRankedVerifiers(context.Background(), project.ID, Criteria{}, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, []uuid.UUID{first, second}, []uuid.UUID{ranked[0].VerifierID, ranked[1].VerifierID})
}

func TestGetRankedVerifiers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	project := env.addProject(directory.ProjectTypeBiogas, directory.PriorityHigh)

	idle := env.addVerifier(uuid.Nil, "Idle", "biogas")
	busy := env.addVerifier(uuid.Nil, "Busy", "waste_management")
	outsider := env.addVerifier(uuid.Nil, "Outsider", "solar")
	env.seedRecords(t, busy, verification.StatusInProgress, 4)

	ranked, err := env.service.GetRankedVerifiers(ctx, project.ID, Criteria{RequireSpecialty: true}, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, idle, ranked[0].VerifierID)
	assert.Equal(t, busy, ranked[1].VerifierID)
	assert.Equal(t, outsider, ranked[2].VerifierID)
	assert.True(t, ranked[2].Disqualified)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	top, err := env.service.GetRankedVerifiers(ctx, project.ID, Criteria{RequireSpecialty: true}, 2)
	require.NoError(t, err)
	assert.Equal(t, ranked[:2], top)

	again, err := env.service.GetRankedVerifiers(ctx, project.ID, Criteria{RequireSpecialty: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, ranked, again)
}

func TestAutoAssignVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("urgent project is due in exactly 72 hours", func(t *testing.T) {
		env := newTestEnv(t)
		verifier := env.addVerifier(uuid.Nil, "Ada", "environmental")
		project := env.addProject(directory.ProjectTypeMangroveRestoration, directory.PriorityUrgent)

		result, err := env.service.AutoAssignVerifier(ctx, env.admin, AutoAssignRequest{ProjectID: project.ID})
		require.NoError(t, err)
		require.True(t, result.Assigned)
		assert.Equal(t, verifier, result.Verification.VerifierID)
		assert.Equal(t, env.clock.Now().Add(72*time.Hour), result.Verification.DueDate)
		assert.Equal(t, directory.PriorityUrgent, result.Verification.Priority)

		stored, err := env.dir.GetProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Equal(t, verifier, *stored.AssignedVerifierID)
		assert.Equal(t, directory.VerificationStatusInProgress, stored.VerificationStatus)
	})

	t.Run("due date follows priority", func(t *testing.T) {
		for priority, want := range map[directory.Priority]time.Duration{
			directory.PriorityHigh:   7 * 24 * time.Hour,
			directory.PriorityNormal: 14 * 24 * time.Hour,
			directory.PriorityLow:    21 * 24 * time.Hour,
		} {
			env := newTestEnv(t)
			env.addVerifier(uuid.Nil, "Ada", "solar")
			project := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)

			result, err := env.service.AutoAssignVerifier(ctx, env.admin, AutoAssignRequest{ProjectID: project.ID, Priority: priority})
			require.NoError(t, err)
			assert.Equal(t, env.clock.Now().Add(want), result.Verification.DueDate, priority)
		}
	})

	t.Run("explicit due date wins", func(t *testing.T) {
		env := newTestEnv(t)
		env.addVerifier(uuid.Nil, "Ada", "solar")
		project := env.addProject(directory.ProjectTypeSolar, directory.PriorityUrgent)
		due := env.clock.Now().Add(30 * 24 * time.Hour)

		result, err := env.service.AutoAssignVerifier(ctx, env.admin, AutoAssignRequest{ProjectID: project.ID, DueDate: &due})
		require.NoError(t, err)
		assert.Equal(t, due, result.Verification.DueDate)
	})

	t.Run("disqualified verifiers are never assigned", func(t *testing.T) {
		env := newTestEnv(t)
		env.addVerifier(uuid.Nil, "Ada", "solar")
		project := env.addProject(directory.ProjectTypeBiogas, directory.PriorityNormal)

		result, err := env.service.AutoAssignVerifier(ctx, env.admin, AutoAssignRequest{
			ProjectID: project.ID,
			Criteria:  Criteria{RequireSpecialty: true},
		})
		require.NoError(t, err)
		assert.False(t, result.Assigned)
		assert.Nil(t, result.Verification)
		assert.NotEmpty(t, result.Reason)

		active, err := env.repo.ActiveForProject(ctx, project.ID)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("no verifiers", func(t *testing.T) {
		env := newTestEnv(t)
		project := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)

		result, err := env.service.AutoAssignVerifier(ctx, env.admin, AutoAssignRequest{ProjectID: project.ID})
		require.NoError(t, err)
		assert.False(t, result.Assigned)
	})

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t)
		project := env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal)

		_, err := env.service.AutoAssignVerifier(ctx, auth.Principal{UserID: uuid.New(), Role: directory.RoleVerifier},
			AutoAssignRequest{ProjectID: project.ID})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestSubmitProjectAutoAssigns(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	verifier := env.addVerifier(uuid.Nil, "Ada", "wind")

	project := env.addProject(directory.ProjectTypeWind, directory.PriorityHigh)
	project.Status = directory.ProjectStatusDraft
	project.SubmittedAt = nil
	env.dir.PutProject(project)

	result, err := env.workflow.SubmitProject(ctx, auth.Principal{UserID: project.CreatorID, Role: directory.RoleProjectDeveloper}, project.ID)
	require.NoError(t, err)
	require.True(t, result.Assigned)
	assert.Equal(t, verifier, result.Verification.VerifierID)
	assert.Equal(t, env.clock.Now().Add(7*24*time.Hour), result.Verification.DueDate)
	assert.Equal(t, verifier, *result.Project.AssignedVerifierID)

	unmatched := env.addProject(directory.ProjectTypeBiogas, directory.PriorityNormal)
	unmatched.Status = directory.ProjectStatusDraft
	env.dir.PutProject(unmatched)

	result, err = env.workflow.SubmitProject(ctx, env.admin, unmatched.ID)
	require.NoError(t, err)
	assert.False(t, result.Assigned)
	assert.Nil(t, result.Project.AssignedVerifierID)
}

func TestBatchAutoAssign(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addVerifier(uuid.Nil, "Ada", "solar")
	env.addVerifier(uuid.Nil, "Grace", "solar")

	var ids []uuid.UUID
	for i := 0; i < 11; i++ {
		ids = append(ids, env.addProject(directory.ProjectTypeSolar, directory.PriorityNormal).ID)
	}
	missing := uuid.New()
	ids = append([]uuid.UUID{missing, ids[0]}, ids...)

	result, err := env.service.BatchAutoAssign(ctx, env.admin, ids, Criteria{RequireSpecialty: true})
	require.NoError(t, err)

	require.Len(t, result.Items, MaxBatchSize)
	assert.Len(t, result.Remaining, 2)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, MaxBatchSize-1, result.Assigned)

	assert.Equal(t, missing, result.Items[0].ProjectID)
	assert.NotEmpty(t, result.Items[0].Error)
	for _, item := range result.Items[1:] {
		assert.True(t, item.Assigned, item.ProjectID)
		assert.NotNil(t, item.VerificationID)
	}

	_, err = env.service.BatchAutoAssign(ctx, auth.Principal{UserID: uuid.New(), Role: directory.RoleBuyer}, ids, Criteria{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestGetWorkloadDistribution(t *testing.T) {
	env := newTestEnv(t)
	heavy := env.addVerifier(uuid.Nil, "Heavy", "solar")
	light := env.addVerifier(uuid.Nil, "Light", "wind")
	middle := env.addVerifier(uuid.Nil, "Middle", "biogas")
	env.seedRecords(t, heavy, verification.StatusAssigned, 5)
	env.seedRecords(t, middle, verification.StatusInProgress, 2)
	env.seedRecords(t, middle, verification.StatusApproved, 3)

	entries, err := env.service.GetWorkloadDistribution(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, light, entries[0].VerifierID)
	assert.Equal(t, middle, entries[1].VerifierID)
	assert.Equal(t, heavy, entries[2].VerifierID)
	assert.Equal(t, []int{0, 2, 5}, []int{entries[0].Workload, entries[1].Workload, entries[2].Workload})
	assert.Equal(t, 3, entries[1].TotalCompleted)
	assert.Equal(t, []string{"biogas"}, entries[1].Specialties)
}

func TestRebalanceWorkloadMedianBand(t *testing.T) {
	env := newTestEnv(t)
	busy := env.addVerifier(uuid.Nil, "Busy", "environmental")
	idle := env.addVerifier(uuid.Nil, "Idle", "environmental")
	env.seedRecords(t, busy, verification.StatusAssigned, 10)
	env.seedRecords(t, idle, verification.StatusAssigned, 2)

	// ascending [2, 10], index len/2 = 1, so the median is 10 and nobody is above 13
	result, err := env.service.RebalanceWorkload(context.Background(), env.admin, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Median)
	assert.Equal(t, 0, result.Reassignments)
	assert.Empty(t, result.Details)
	assert.InDelta(t, 6, result.MeanWorkload, 0.001)
	assert.InDelta(t, 4, result.StdDevWorkload, 0.001)
}

func TestRebalanceWorkloadMovesAssignedOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	over := env.addVerifier(uuid.Nil, "Over", "environmental")
	mid := env.addVerifier(uuid.Nil, "Mid", "solar")
	under := env.addVerifier(uuid.Nil, "Under", "environmental")

	started := env.seedRecords(t, over, verification.StatusInProgress, 1)
	env.seedRecords(t, over, verification.StatusAssigned, 11)
	env.seedRecords(t, mid, verification.StatusAssigned, 4)

	// ascending [0, 4, 12]: median 4, band (2, 6); the match score stays above 5
	// until the target holds 15, so the run stops at the cap
	result, err := env.service.RebalanceWorkload(ctx, auth.SystemPrincipal(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Median)
	assert.Equal(t, 1, result.Overloaded)
	assert.Equal(t, 1, result.Underloaded)
	assert.Equal(t, MaxReassignments, result.Reassignments)
	require.Len(t, result.Details, MaxReassignments)

	assert.Equal(t, 2, env.workloadOf(t, over))
	assert.Equal(t, 4, env.workloadOf(t, mid))
	assert.Equal(t, 10, env.workloadOf(t, under))

	inProgress, err := env.repo.Get(ctx, started[0])
	require.NoError(t, err)
	assert.Equal(t, over, inProgress.VerifierID)

	for _, move := range result.Details {
		assert.Equal(t, over, move.FromVerifierID)
		assert.Equal(t, under, move.ToVerifierID)
		assert.True(t, move.SpecialtyMatch)
		assert.Greater(t, move.MatchScore, 5)

		record, err := env.repo.Get(ctx, move.VerificationID)
		require.NoError(t, err)
		assert.Equal(t, under, record.VerifierID)
		assert.Equal(t, verification.StatusAssigned, record.Status)
		assert.Equal(t, env.clock.Now().Add(14*24*time.Hour), record.DueDate)

		project, err := env.dir.GetProject(ctx, move.ProjectID)
		require.NoError(t, err)
		assert.Equal(t, under, *project.AssignedVerifierID)
	}

	overUser, err := env.dir.GetUser(ctx, over)
	require.NoError(t, err)
	assert.Equal(t, 2, overUser.CurrentWorkload)
	underUser, err := env.dir.GetUser(ctx, under)
	require.NoError(t, err)
	assert.Equal(t, 10, underUser.CurrentWorkload)
}

func TestRebalanceWorkloadKeepsMovingBelowTheBand(t *testing.T) {
	env := newTestEnv(t)
	over := env.addVerifier(uuid.Nil, "Over", "environmental")
	mid := env.addVerifier(uuid.Nil, "Mid", "solar")
	under := env.addVerifier(uuid.Nil, "Under", "environmental")
	env.seedRecords(t, over, verification.StatusAssigned, 8)
	env.seedRecords(t, mid, verification.StatusAssigned, 4)

	// ascending [0, 4, 8]: median 4, band (2, 6); every assigned record moves
	// even after the source drops below the upper bound
	result, err := env.service.RebalanceWorkload(context.Background(), env.admin, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Reassignments)
	assert.Equal(t, 0, env.workloadOf(t, over))
	assert.Equal(t, 8, env.workloadOf(t, under))
	assert.Equal(t, 4, env.workloadOf(t, mid))
}

func TestRebalanceWorkloadWithoutSpecialtyStopsAtMatchThreshold(t *testing.T) {
	env := newTestEnv(t)
	over := env.addVerifier(uuid.Nil, "Over", "environmental")
	mid := env.addVerifier(uuid.Nil, "Mid", "solar")
	under := env.addVerifier(uuid.Nil, "Under", "wind")
	env.seedRecords(t, over, verification.StatusAssigned, 12)
	env.seedRecords(t, mid, verification.StatusAssigned, 4)

	// (10 - workload) must stay above 5, so the target takes five
	result, err := env.service.RebalanceWorkload(context.Background(), env.admin, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Reassignments)
	assert.Equal(t, 5, env.workloadOf(t, under))
	assert.Equal(t, 7, env.workloadOf(t, over))
}

func TestRebalanceWorkloadIsCapped(t *testing.T) {
	env := newTestEnv(t)
	over := env.addVerifier(uuid.Nil, "Over", "environmental")
	a := env.addVerifier(uuid.Nil, "A", "environmental")
	b := env.addVerifier(uuid.Nil, "B", "environmental")
	c := env.addVerifier(uuid.Nil, "C", "solar")
	d := env.addVerifier(uuid.Nil, "D", "solar")
	env.seedRecords(t, over, verification.StatusAssigned, 25)
	env.seedRecords(t, c, verification.StatusAssigned, 2)
	env.seedRecords(t, d, verification.StatusAssigned, 2)

	result, err := env.service.RebalanceWorkload(context.Background(), env.admin, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxReassignments, result.Reassignments)
	assert.Equal(t, 15, env.workloadOf(t, over))
	assert.Equal(t, 10, env.workloadOf(t, a)+env.workloadOf(t, b))
}

func TestRebalanceWorkloadRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.RebalanceWorkload(context.Background(), auth.Principal{UserID: uuid.New(), Role: directory.RoleVerifier}, 2)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.service.RebalanceWorkload(context.Background(), env.admin, -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUrgency(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		at := now.AddDate(0, 0, -d)
		return &at
	}

	tests := []struct {
		name    string
		project directory.Project
		want    float64
	}{
		{name: "fresh low priority", project: directory.Project{Priority: directory.PriorityLow, SubmittedAt: daysAgo(0)}, want: 60},
		{name: "normal four days medium size", project: directory.Project{Priority: directory.PriorityNormal, SubmittedAt: daysAgo(4), ExpectedCredits: 6000}, want: 95},
		{name: "high eight days", project: directory.Project{Priority: directory.PriorityHigh, SubmittedAt: daysAgo(8)}, want: 100},
		{name: "urgent large is clamped", project: directory.Project{Priority: directory.PriorityUrgent, SubmittedAt: daysAgo(10), ExpectedCredits: 20000}, want: 100},
		{name: "never submitted", project: directory.Project{Priority: directory.PriorityNormal, ExpectedCredits: 12000}, want: 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Urgency(&tt.project, now))
		})
	}
}

func TestGetAssignmentRecommendations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i := 0; i < 4; i++ {
		env.addVerifier(uuid.Nil, fmt.Sprintf("Solar %d", i), "solar")
	}
	overloaded := env.addVerifier(uuid.Nil, "Overloaded", "wind")
	env.seedRecords(t, overloaded, verification.StatusInProgress, 9)

	solar := env.addProject(directory.ProjectTypeSolar, directory.PriorityLow)
	urgentSolar := env.addProject(directory.ProjectTypeSolar, directory.PriorityUrgent)
	biogas := env.addProject(directory.ProjectTypeBiogas, directory.PriorityUrgent)
	wind := env.addProject(directory.ProjectTypeWind, directory.PriorityNormal)

	recs, err := env.service.GetAssignmentRecommendations(ctx, 20)
	require.NoError(t, err)

	var projects []uuid.UUID
	for _, r := range recs {
		projects = append(projects, r.Project.ID)
		assert.LessOrEqual(t, len(r.TopVerifiers), 3)
		for _, v := range r.TopVerifiers {
			assert.False(t, v.Disqualified)
		}
	}
	assert.NotContains(t, projects, biogas.ID)
	require.Equal(t, []uuid.UUID{urgentSolar.ID, wind.ID, solar.ID}, projects)

	assert.Len(t, recs[0].TopVerifiers, 3)
	require.Len(t, recs[1].TopVerifiers, 1)
	assert.Equal(t, overloaded, recs[1].TopVerifiers[0].VerifierID)
}

func TestExportWorkload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	heavy := env.addVerifier(uuid.Nil, "Heavy", "solar", "wind")
	env.addVerifier(uuid.Nil, "Light", "biogas")
	env.seedRecords(t, heavy, verification.StatusAssigned, 3)

	data, err := env.service.ExportWorkload(ctx, FormatXLSX)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Workload", "Summary"}, book.GetSheetList())

	name, err := book.GetCellValue("Workload", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Heavy", name)

	data, err = env.service.ExportWorkload(ctx, FormatCSV)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Light", rows[1][1])
	assert.Equal(t, "3", rows[2][2])
	assert.Equal(t, "solar; wind", rows[2][7])

	data, err = env.service.ExportWorkload(ctx, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = env.service.ExportWorkload(ctx, "docx")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
