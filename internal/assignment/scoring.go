package assignment

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
)

// DefaultMaxWorkload applies when Criteria.MaxWorkload is nil
const DefaultMaxWorkload = 10

const baseScore = 100.0

// Criteria tunes how verifiers are scored and filtered. MaxWorkload is the
// saturation point of the workload factor: nil means DefaultMaxWorkload and an
// explicit zero is honoured.
type Criteria struct {
	RequireSpecialty bool        `json:"require_specialty"`
	MaxWorkload      *int        `json:"max_workload,omitempty"`
	PriorityBoost    bool        `json:"priority_boost"`
	BalanceWorkload  bool        `json:"balance_workload"`
	ExcludeVerifiers []uuid.UUID `json:"exclude_verifiers,omitempty"`
}

func (c Criteria) maxWorkload() int {
	if c.MaxWorkload == nil {
		return DefaultMaxWorkload
	}
	return *c.MaxWorkload
}

// VerifierScore is a verifier's suitability for one project. Reasons lists
// every adjustment in the order it was applied.
type VerifierScore struct {
	VerifierID      uuid.UUID `json:"verifier_id"`
	Name            string    `json:"name"`
	Score           float64   `json:"score"`
	CurrentWorkload int       `json:"current_workload"`
	SpecialtyMatch  bool      `json:"specialty_match"`
	Disqualified    bool      `json:"disqualified"`
	AverageQuality  float64   `json:"average_quality"`
	OnTimeRate      float64   `json:"on_time_rate"`
	Reasons         []string  `json:"reasons"`
}

// ScoreVerifier scores one verifier for a project from a statistics snapshot.
// It starts at 100, applies each factor in turn and clamps the result to [0, 100].
func ScoreVerifier(verifier *directory.User, stats verification.VerifierStats, project *directory.Project, criteria Criteria) VerifierScore {
	result := VerifierScore{
		VerifierID:      verifier.ID,
		Name:            verifier.FullName,
		CurrentWorkload: stats.Workload(),
		AverageQuality:  stats.AverageScore,
		OnTimeRate:      stats.OnTimeRate(),
		Reasons:         []string{},
	}
	score := baseScore

	// specialty
	result.SpecialtyMatch = directory.HasRequiredSpecialty(verifier, project.ProjectType)
	switch {
	case result.SpecialtyMatch:
		score += 30
		result.Reasons = append(result.Reasons, fmt.Sprintf("Specialty match for %s (+30)", project.ProjectType))
	case criteria.RequireSpecialty:
		result.Score = 0
		result.Disqualified = true
		result.Reasons = append(result.Reasons, "Missing required specialty")
		return result
	default:
		result.Reasons = append(result.Reasons, "No specialty match")
	}

	// workload
	workload := result.CurrentWorkload
	maxWorkload := criteria.maxWorkload()
	switch {
	case workload >= maxWorkload:
		score = math.Max(0, score-50)
		result.Reasons = append(result.Reasons, fmt.Sprintf("At or above max workload %d/%d (-50)", workload, maxWorkload))
	case workload == 0:
		score += 20
		result.Reasons = append(result.Reasons, "No active verifications (+20)")
	default:
		penalty := float64(workload) / float64(maxWorkload) * 25
		score -= penalty
		result.Reasons = append(result.Reasons, fmt.Sprintf("Workload %d/%d (-%.1f)", workload, maxWorkload, penalty))
	}

	// quality
	if stats.AverageScore != 0 {
		bonus := clamp((stats.AverageScore-70)/30*20, -10, 20)
		score += bonus
		result.Reasons = append(result.Reasons, fmt.Sprintf("Average quality %.1f (%+.1f)", stats.AverageScore, bonus))
	}

	// timeliness
	onTime := result.OnTimeRate
	switch {
	case onTime >= 90:
		score += 15
		result.Reasons = append(result.Reasons, fmt.Sprintf("On-time rate %.0f%% (+15)", onTime))
	case onTime >= 70:
		score += 10
		result.Reasons = append(result.Reasons, fmt.Sprintf("On-time rate %.0f%% (+10)", onTime))
	case onTime < 50:
		score -= 15
		result.Reasons = append(result.Reasons, fmt.Sprintf("On-time rate %.0f%% (-15)", onTime))
	default:
		result.Reasons = append(result.Reasons, fmt.Sprintf("On-time rate %.0f%%", onTime))
	}

	// urgent projects go to proven verifiers
	if criteria.PriorityBoost && project.Priority == directory.PriorityUrgent &&
		stats.TotalVerifications > 5 && stats.AverageScore > 80 {
		score += 15
		result.Reasons = append(result.Reasons, "Experienced verifier for urgent project (+15)")
	}

	// recency
	switch {
	case stats.CompletedThisMonth == 0 && stats.TotalVerifications > 0:
		score -= 10
		result.Reasons = append(result.Reasons, "No completions this month (-10)")
	case stats.CompletedThisMonth > 3:
		score += 5
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d completions this month (+5)", stats.CompletedThisMonth))
	}

	if stats.OverdueVerifications > 0 {
		penalty := float64(stats.OverdueVerifications * 20)
		score -= penalty
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d overdue verifications (-%.0f)", stats.OverdueVerifications, penalty))
	}

	result.Score = clamp(score, 0, 100)
	if result.Score != score {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Clamped from %.1f", score))
	}
	return result
}

// better orders candidates: eligible first, then higher score, then lower
// workload, then lower id
func better(a, b VerifierScore) bool {
	if a.Disqualified != b.Disqualified {
		return !a.Disqualified
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CurrentWorkload != b.CurrentWorkload {
		return a.CurrentWorkload < b.CurrentWorkload
	}
	return a.VerifierID.String() < b.VerifierID.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
