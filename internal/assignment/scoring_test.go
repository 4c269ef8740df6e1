package assignment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
)

func TestScoreVerifier(t *testing.T) {
	specialist := &directory.User{ID: uuid.New(), FullName: "Specialist", Specialties: []string{"environmental"}}
	generalist := &directory.User{ID: uuid.New(), FullName: "Generalist", Specialties: []string{"finance"}}

	reforestation := &directory.Project{ProjectType: directory.ProjectTypeReforestation, Priority: directory.PriorityNormal}
	urgent := &directory.Project{ProjectType: directory.ProjectTypeReforestation, Priority: directory.PriorityUrgent}

	tests := []struct {
		name         string
		verifier     *directory.User
		stats        verification.VerifierStats
		project      *directory.Project
		criteria     Criteria
		want         float64
		disqualified bool
	}{
		{
			name:     "fresh specialist is clamped to 100",
			verifier: specialist,
			project:  reforestation,
			want:     100,
		},
		{
			name:         "missing required specialty disqualifies",
			verifier:     generalist,
			project:      reforestation,
			criteria:     Criteria{RequireSpecialty: true},
			want:         0,
			disqualified: true,
		},
		{
			name:     "workload at default max",
			verifier: specialist,
			stats:    verification.VerifierStats{Pending: 6, InProgress: 4},
			project:  reforestation,
			want:     95,
		},
		{
			name:     "workload equal to max takes the flat penalty",
			verifier: generalist,
			stats:    verification.VerifierStats{Pending: 10},
			project:  reforestation,
			want:     65,
		},
		{
			name:     "workload one below max is proportional",
			verifier: generalist,
			stats:    verification.VerifierStats{Pending: 5, InProgress: 4},
			project:  reforestation,
			want:     92.5,
		},
		{
			name:     "partial workload and overdue penalty",
			verifier: generalist,
			stats:    verification.VerifierStats{Pending: 3, InProgress: 2, OverdueVerifications: 1},
			project:  reforestation,
			want:     82.5,
		},
		{
			name:     "poor quality is capped at minus ten",
			verifier: generalist,
			stats: verification.VerifierStats{
				AverageScore:       40,
				TotalVerifications: 10,
				OnTimeCompletions:  4,
			},
			project: reforestation,
			want:    85,
		},
		{
			name:     "explicit zero max workload is honoured",
			verifier: generalist,
			project:  reforestation,
			criteria: Criteria{MaxWorkload: intPtr(0)},
			want:     65,
		},
		{
			name:     "custom max workload",
			verifier: generalist,
			stats:    verification.VerifierStats{Pending: 4, OverdueVerifications: 1},
			project:  reforestation,
			criteria: Criteria{MaxWorkload: intPtr(8)},
			// 100 - 12.5 + 15 - 20
			want: 82.5,
		},
		{
			name:     "urgent boost for experienced verifier",
			verifier: generalist,
			stats: verification.VerifierStats{
				Pending:              8,
				AverageScore:         85,
				TotalVerifications:   6,
				OnTimeCompletions:    6,
				CompletedThisMonth:   4,
				OverdueVerifications: 2,
			},
			project:  urgent,
			criteria: Criteria{PriorityBoost: true},
			want:     85,
		},
		{
			name:     "no urgent boost without the criteria flag",
			verifier: generalist,
			stats: verification.VerifierStats{
				Pending:              8,
				AverageScore:         85,
				TotalVerifications:   6,
				OnTimeCompletions:    6,
				CompletedThisMonth:   4,
				OverdueVerifications: 2,
			},
			project: urgent,
			want:    70,
		},
		{
			name:     "decent on-time rate",
			verifier: generalist,
			stats: verification.VerifierStats{
				InProgress:           1,
				AverageScore:         70,
				TotalVerifications:   4,
				OnTimeCompletions:    3,
				CompletedThisMonth:   1,
				OverdueVerifications: 1,
			},
			project: reforestation,
			want:    87.5,
		},
		{
			name:     "many overdue clamps at zero",
			verifier: specialist,
			stats:    verification.VerifierStats{InProgress: 10, OverdueVerifications: 10},
			project:  reforestation,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreVerifier(tt.verifier, tt.stats, tt.project, tt.criteria)

			assert.InDelta(t, tt.want, got.Score, 0.001)
			assert.Equal(t, tt.disqualified, got.Disqualified)
			assert.Equal(t, tt.verifier.ID, got.VerifierID)
			assert.NotEmpty(t, got.Reasons)
			assert.GreaterOrEqual(t, got.Score, 0.0)
			assert.LessOrEqual(t, got.Score, 100.0)
		})
	}
}

func TestScoreVerifierDisqualificationStopsEarly(t *testing.T) {
	verifier := &directory.User{ID: uuid.New(), Specialties: []string{"wind"}}
	project := &directory.Project{ProjectType: directory.ProjectTypeBiogas}

	got := ScoreVerifier(verifier, verification.VerifierStats{OverdueVerifications: 3}, project, Criteria{RequireSpecialty: true})

	assert.Equal(t, []string{"Missing required specialty"}, got.Reasons)
	assert.False(t, got.SpecialtyMatch)
	assert.Zero(t, got.Score)
}

func TestScoreVerifierUnknownProjectType(t *testing.T) {
	verifier := &directory.User{ID: uuid.New(), Specialties: []string{"geothermal"}}
	project := &directory.Project{ProjectType: "geothermal"}

	got := ScoreVerifier(verifier, verification.VerifierStats{}, project, Criteria{RequireSpecialty: true})
	assert.True(t, got.SpecialtyMatch)
	assert.False(t, got.Disqualified)
}

func TestScoreVerifierIsDeterministic(t *testing.T) {
	verifier := &directory.User{ID: uuid.New(), Specialties: []string{"solar"}}
	project := &directory.Project{ProjectType: directory.ProjectTypeSolar}
	stats := verification.VerifierStats{Pending: 2, AverageScore: 77, TotalVerifications: 9, OnTimeCompletions: 8}

	first := ScoreVerifier(verifier, stats, project, Criteria{})
	second := ScoreVerifier(verifier, stats, project, Criteria{})
	assert.Equal(t, first, second)
}

func TestBetter(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	assert.True(t, better(VerifierScore{Score: 90}, VerifierScore{Score: 80}))
	assert.True(t, better(VerifierScore{Score: 80, CurrentWorkload: 1}, VerifierScore{Score: 80, CurrentWorkload: 2}))
	assert.True(t, better(VerifierScore{Score: 80, VerifierID: low}, VerifierScore{Score: 80, VerifierID: high}))
	assert.False(t, better(VerifierScore{Score: 80, VerifierID: high}, VerifierScore{Score: 80, VerifierID: low}))
	assert.True(t, better(VerifierScore{Score: 0, CurrentWorkload: 9}, VerifierScore{Score: 0, Disqualified: true}))
}
