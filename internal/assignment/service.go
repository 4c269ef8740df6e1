package assignment

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/reports/export"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

// MaxBatchSize bounds the projects handled by one batch call
const MaxBatchSize = 10

// MaxReassignments bounds the records moved by one rebalance call
const MaxReassignments = 10

// DueDurations maps a priority to the review window granted on auto-assignment
var DueDurations = map[directory.Priority]time.Duration{
	directory.PriorityUrgent: 3 * 24 * time.Hour,
	directory.PriorityHigh:   7 * 24 * time.Hour,
	directory.PriorityNormal: 14 * 24 * time.Hour,
	directory.PriorityLow:    21 * 24 * time.Hour,
}

var urgencyWeights = map[directory.Priority]float64{
	directory.PriorityUrgent: 40,
	directory.PriorityHigh:   30,
	directory.PriorityNormal: 20,
	directory.PriorityLow:    10,
}

// recommendationCriteria is used when suggesting verifiers for unassigned projects
var recommendationCriteria = Criteria{RequireSpecialty: true, MaxWorkload: intPtr(8), PriorityBoost: true}

func intPtr(v int) *int { return &v }

// Workflow is the part of the verification workflow assignment drives
type Workflow interface {
	CreateVerification(ctx context.Context, actor auth.Principal, req verification.CreateRequest) (*verification.Record, error)
	MoveAssignment(ctx context.Context, actor auth.Principal, id, toVerifierID uuid.UUID, reason string) (*verification.Record, error)
	AssignedRecords(ctx context.Context, verifierID uuid.UUID) ([]verification.Record, error)
	RefreshWorkload(ctx context.Context, verifierID uuid.UUID) error
	Stats(ctx context.Context, verifierID uuid.UUID) (*verification.VerifierStats, error)
}

// Options tunes the service
type Options struct {
	// DefaultCriteria is used when a project is auto-assigned on submission
	DefaultCriteria Criteria
	// StatsConcurrency bounds parallel statistics reads
	StatsConcurrency int
}

// Service picks, ranks and balances verifiers
type Service struct {
	users    directory.UserDirectory
	projects directory.ProjectDirectory
	workflow Workflow
	clock    clock.Clock
	logger   *zap.Logger
	options  Options
}

// NewService creates an assignment service
func NewService(users directory.UserDirectory, projects directory.ProjectDirectory, workflow Workflow, clk clock.Clock, logger *zap.Logger, options Options) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if options.StatsConcurrency <= 0 {
		options.StatsConcurrency = 8
	}
	return &Service{
		users:    users,
		projects: projects,
		workflow: workflow,
		clock:    clk,
		logger:   logger,
		options:  options,
	}
}

// candidate is a verifier with the statistics snapshot it is scored against
type candidate struct {
	user  directory.User
	stats verification.VerifierStats
}

// snapshot reads every active verifier's statistics once. Any failure aborts
// the snapshot so no verifier is scored on partial data.
func (s *Service) snapshot(ctx context.Context, exclude []uuid.UUID) ([]candidate, error) {
	verifiers, err := s.users.ActiveVerifiers(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifiers: %w", err)
	}

	candidates := make([]candidate, len(verifiers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.StatsConcurrency)
	for i := range verifiers {
		i := i
		g.Go(func() error {
			st, err := s.workflow.Stats(gctx, verifiers[i].ID)
			if err != nil {
				return fmt.Errorf("failed to load stats for verifier %s: %w", verifiers[i].ID, err)
			}
			candidates[i] = candidate{user: verifiers[i], stats: *st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func rank(candidates []candidate, project *directory.Project, criteria Criteria) []VerifierScore {
	scores := make([]VerifierScore, len(candidates))
	for i := range candidates {
		scores[i] = ScoreVerifier(&candidates[i].user, candidates[i].stats, project, criteria)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return better(scores[i], scores[j])
	})
	return scores
}

// =====================================================
// Selection
// =====================================================

// GetOptimalVerifier returns the best scored verifier for the project, or nil
// when there are no active verifiers. The best may be disqualified; callers
// that assign must check.
func (s *Service) GetOptimalVerifier(ctx context.Context, projectID uuid.UUID, criteria Criteria) (*VerifierScore, error) {
	ranked, err := s.GetRankedVerifiers(ctx, projectID, criteria, 1)
	if err != nil || len(ranked) == 0 {
		return nil, err
	}
	return &ranked[0], nil
}

// GetRankedVerifiers scores every active verifier and returns the top limit.
// A limit of zero or less returns all of them.
func (s *Service) GetRankedVerifiers(ctx context.Context, projectID uuid.UUID, criteria Criteria, limit int) ([]VerifierScore, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.snapshot(ctx, criteria.ExcludeVerifiers)
	if err != nil {
		return nil, err
	}

	ranked := rank(candidates, project, criteria)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// AutoAssignRequest asks for a project to be assigned to its best verifier
type AutoAssignRequest struct {
	ProjectID uuid.UUID          `json:"project_id"`
	Criteria  Criteria           `json:"criteria"`
	DueDate   *time.Time         `json:"due_date,omitempty"`
	Priority  directory.Priority `json:"priority,omitempty"`
}

// AutoAssignResult is the outcome of an auto-assignment. Assigned is false when
// no eligible verifier exists, which is not an error.
type AutoAssignResult struct {
	Assigned     bool                 `json:"assigned"`
	Verification *verification.Record `json:"verification,omitempty"`
	Verifier     *VerifierScore       `json:"verifier,omitempty"`
	Reason       string               `json:"reason,omitempty"`
}

// AutoAssignVerifier assigns the project to the best eligible verifier
func (s *Service) AutoAssignVerifier(ctx context.Context, actor auth.Principal, req AutoAssignRequest) (*AutoAssignResult, error) {
	if err := auth.RequireAdmin(actor, "auto-assign verifiers"); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	best, err := s.GetOptimalVerifier(ctx, req.ProjectID, req.Criteria)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return &AutoAssignResult{Reason: "No active verifiers"}, nil
	}
	if best.Disqualified {
		return &AutoAssignResult{Verifier: best, Reason: "No verifier with the required specialty"}, nil
	}

	priority := req.Priority
	if priority == "" {
		priority = project.Priority
	}
	if !priority.Valid() {
		priority = directory.PriorityNormal
	}
	due := s.clock.Now().Add(DueDurations[priority])
	if req.DueDate != nil {
		due = *req.DueDate
	}

	record, err := s.workflow.CreateVerification(ctx, actor, verification.CreateRequest{
		ProjectID:  project.ID,
		VerifierID: best.VerifierID,
		DueDate:    due,
		Priority:   priority,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("verifier auto-assigned",
		zap.String("project_id", project.ID.String()),
		zap.String("verifier_id", best.VerifierID.String()),
		zap.Float64("score", best.Score))

	return &AutoAssignResult{Assigned: true, Verification: record, Verifier: best}, nil
}

// AssignProject auto-assigns a freshly submitted project with the default
// criteria. A nil record means no verifier was eligible.
func (s *Service) AssignProject(ctx context.Context, projectID uuid.UUID) (*verification.Record, error) {
	result, err := s.AutoAssignVerifier(ctx, auth.SystemPrincipal(), AutoAssignRequest{
		ProjectID: projectID,
		Criteria:  s.options.DefaultCriteria,
	})
	if err != nil {
		return nil, err
	}
	return result.Verification, nil
}

// BatchItem is one project's outcome in a batch
type BatchItem struct {
	ProjectID      uuid.UUID  `json:"project_id"`
	Assigned       bool       `json:"assigned"`
	VerificationID *uuid.UUID `json:"verification_id,omitempty"`
	VerifierID     *uuid.UUID `json:"verifier_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// BatchResult collects per-project outcomes. Remaining lists the projects
// beyond the batch cap; callers submit them again.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Assigned  int         `json:"assigned"`
	Failed    int         `json:"failed"`
	Remaining []uuid.UUID `json:"remaining,omitempty"`
}

// BatchAutoAssign auto-assigns up to MaxBatchSize projects. Each project
// succeeds or fails on its own.
func (s *Service) BatchAutoAssign(ctx context.Context, actor auth.Principal, projectIDs []uuid.UUID, criteria Criteria) (*BatchResult, error) {
	if err := auth.RequireAdmin(actor, "batch-assign verifiers"); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(projectIDs))
	var unique []uuid.UUID
	for _, id := range projectIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	result := &BatchResult{}
	if len(unique) > MaxBatchSize {
		result.Remaining = unique[MaxBatchSize:]
		unique = unique[:MaxBatchSize]
	}

	result.Items = make([]BatchItem, len(unique))
	var g errgroup.Group
	g.SetLimit(s.options.StatsConcurrency)
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			item := BatchItem{ProjectID: id}
			res, err := s.AutoAssignVerifier(ctx, actor, AutoAssignRequest{ProjectID: id, Criteria: criteria})
			switch {
			case err != nil:
				item.Error = err.Error()
			case res.Assigned:
				item.Assigned = true
				item.VerificationID = &res.Verification.ID
				item.VerifierID = &res.Verifier.VerifierID
			default:
				item.Reason = res.Reason
			}
			result.Items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range result.Items {
		if item.Assigned {
			result.Assigned++
		}
		if item.Error != "" {
			result.Failed++
		}
	}
	return result, nil
}

// =====================================================
// Workload
// =====================================================

// WorkloadEntry is one verifier's line in the workload distribution
type WorkloadEntry struct {
	VerifierID     uuid.UUID `json:"verifier_id"`
	Name           string    `json:"name"`
	Workload       int       `json:"workload"`
	TotalCompleted int       `json:"total_completed"`
	AverageScore   float64   `json:"average_score"`
	OverdueCount   int       `json:"overdue_count"`
	OnTimeRate     float64   `json:"on_time_rate"`
	Specialties    []string  `json:"specialties"`
}

// GetWorkloadDistribution returns every active verifier's load, lightest
// first. Verifiers whose statistics cannot be read are left out.
func (s *Service) GetWorkloadDistribution(ctx context.Context) ([]WorkloadEntry, error) {
	verifiers, err := s.users.ActiveVerifiers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifiers: %w", err)
	}

	var (
		mu      sync.Mutex
		entries = make([]WorkloadEntry, 0, len(verifiers))
	)
	var g errgroup.Group
	g.SetLimit(s.options.StatsConcurrency)
	for i := range verifiers {
		v := verifiers[i]
		g.Go(func() error {
			st, err := s.workflow.Stats(ctx, v.ID)
			if err != nil {
				s.logger.Warn("skipping verifier with unreadable stats",
					zap.String("verifier_id", v.ID.String()), zap.Error(err))
				return nil
			}
			specialties := append([]string{}, v.Specialties...)
			entry := WorkloadEntry{
				VerifierID:     v.ID,
				Name:           v.FullName,
				Workload:       st.Workload(),
				TotalCompleted: st.TotalVerifications,
				AverageScore:   st.AverageScore,
				OverdueCount:   st.OverdueVerifications,
				OnTimeRate:     st.OnTimeRate(),
				Specialties:    specialties,
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Workload != entries[j].Workload {
			return entries[i].Workload < entries[j].Workload
		}
		return entries[i].VerifierID.String() < entries[j].VerifierID.String()
	})
	return entries, nil
}

// RebalanceMove records one reassignment
type RebalanceMove struct {
	VerificationID uuid.UUID `json:"verification_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	FromVerifierID uuid.UUID `json:"from_verifier_id"`
	ToVerifierID   uuid.UUID `json:"to_verifier_id"`
	MatchScore     int       `json:"match_score"`
	SpecialtyMatch bool      `json:"specialty_match"`
}

// RebalanceResult summarises a rebalance run
type RebalanceResult struct {
	Median         int             `json:"median"`
	MeanWorkload   float64         `json:"mean_workload"`
	StdDevWorkload float64         `json:"stddev_workload"`
	Overloaded     int             `json:"overloaded"`
	Underloaded    int             `json:"underloaded"`
	Reassignments  int             `json:"reassignments"`
	Details        []RebalanceMove `json:"details"`
}

// RebalanceWorkload moves not-yet-accepted verifications from overloaded to
// underloaded verifiers. The median is the workload at index len/2 of the
// ascending distribution. Overloaded means above median+maxDiff, underloaded
// below median-maxDiff; verifiers inside the band are left alone. Every
// assigned record of an overloaded verifier moves to the best underloaded match
// scoring above 5, up to MaxReassignments per run.
func (s *Service) RebalanceWorkload(ctx context.Context, actor auth.Principal, maxDiff int) (*RebalanceResult, error) {
	if err := auth.RequireAdmin(actor, "rebalance workload"); err != nil {
		return nil, err
	}
	if maxDiff < 0 {
		return nil, fmt.Errorf("%w: max workload difference must not be negative", apperrors.ErrValidation)
	}

	distribution, err := s.GetWorkloadDistribution(ctx)
	if err != nil {
		return nil, err
	}
	result := &RebalanceResult{Details: []RebalanceMove{}}
	if len(distribution) == 0 {
		return result, nil
	}

	loads := make([]float64, len(distribution))
	for i, e := range distribution {
		loads[i] = float64(e.Workload)
	}
	if result.MeanWorkload, err = stats.Mean(loads); err != nil {
		return nil, fmt.Errorf("failed to compute mean workload: %w", err)
	}
	if result.StdDevWorkload, err = stats.StandardDeviation(loads); err != nil {
		return nil, fmt.Errorf("failed to compute workload deviation: %w", err)
	}

	result.Median = distribution[len(distribution)/2].Workload
	upper := result.Median + maxDiff
	lower := result.Median - maxDiff

	workload := make(map[uuid.UUID]int, len(distribution))
	var overloaded, underloaded []directory.User
	for _, e := range distribution {
		workload[e.VerifierID] = e.Workload
		user := directory.User{ID: e.VerifierID, FullName: e.Name, Specialties: e.Specialties}
		switch {
		case e.Workload > upper:
			overloaded = append(overloaded, user)
		case e.Workload < lower:
			underloaded = append(underloaded, user)
		}
	}
	result.Overloaded = len(overloaded)
	result.Underloaded = len(underloaded)

	touched := map[uuid.UUID]bool{}
	if len(underloaded) > 0 {
	overloadedLoop:
		for _, over := range overloaded {
			records, err := s.workflow.AssignedRecords(ctx, over.ID)
			if err != nil {
				s.logger.Warn("failed to list assigned verifications",
					zap.String("verifier_id", over.ID.String()), zap.Error(err))
				continue
			}

			for _, record := range records {
				if result.Reassignments >= MaxReassignments {
					break overloadedLoop
				}

				project, err := s.projects.GetProject(ctx, record.ProjectID)
				if err != nil {
					s.logger.Warn("skipping verification with unreadable project",
						zap.String("verification_id", record.ID.String()), zap.Error(err))
					continue
				}

				target, matchScore, specialty := bestUnderloaded(underloaded, workload, project.ProjectType)
				if target == nil || matchScore <= 5 {
					continue
				}

				reason := fmt.Sprintf("Rebalanced from verifier %s (workload %d, median %d)", over.ID, workload[over.ID], result.Median)
				if _, err := s.workflow.MoveAssignment(ctx, actor, record.ID, target.ID, reason); err != nil {
					s.logger.Warn("failed to move verification",
						zap.String("verification_id", record.ID.String()), zap.Error(err))
					continue
				}

				workload[over.ID]--
				workload[target.ID]++
				touched[over.ID] = true
				touched[target.ID] = true
				result.Reassignments++
				result.Details = append(result.Details, RebalanceMove{
					VerificationID: record.ID,
					ProjectID:      record.ProjectID,
					FromVerifierID: over.ID,
					ToVerifierID:   target.ID,
					MatchScore:     matchScore,
					SpecialtyMatch: specialty,
				})
			}
		}
	}

	for id := range touched {
		if err := s.workflow.RefreshWorkload(ctx, id); err != nil {
			s.logger.Warn("failed to refresh workload after rebalance",
				zap.String("verifier_id", id.String()), zap.Error(err))
		}
	}

	s.logger.Info("workload rebalanced",
		zap.Int("median", result.Median),
		zap.Int("overloaded", result.Overloaded),
		zap.Int("underloaded", result.Underloaded),
		zap.Int("reassignments", result.Reassignments))

	return result, nil
}

// bestUnderloaded picks the target with the highest (10 - workload) plus 10
// for a specialty match. The first best in distribution order wins.
func bestUnderloaded(underloaded []directory.User, workload map[uuid.UUID]int, projectType directory.ProjectType) (*directory.User, int, bool) {
	var (
		best      *directory.User
		bestScore int
		bestMatch bool
	)
	for i := range underloaded {
		u := &underloaded[i]
		match := directory.HasRequiredSpecialty(u, projectType)
		score := 10 - workload[u.ID]
		if match {
			score += 10
		}
		if best == nil || score > bestScore {
			best, bestScore, bestMatch = u, score, match
		}
	}
	return best, bestScore, bestMatch
}

// =====================================================
// Recommendations
// =====================================================

// Recommendation suggests verifiers for an unassigned project
type Recommendation struct {
	Project      directory.Project `json:"project"`
	TopVerifiers []VerifierScore   `json:"top_verifiers"`
	Urgency      float64           `json:"urgency"`
}

// GetAssignmentRecommendations lists unassigned projects with their top three
// eligible verifiers, most urgent first. Projects nobody is eligible for are
// left out.
func (s *Service) GetAssignmentRecommendations(ctx context.Context, limit int) ([]Recommendation, error) {
	projects, err := s.projects.ListUnassigned(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned projects: %w", err)
	}
	if len(projects) == 0 {
		return []Recommendation{}, nil
	}

	candidates, err := s.snapshot(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := []Recommendation{}
	for i := range projects {
		project := projects[i]

		var eligible []VerifierScore
		for _, score := range rank(candidates, &project, recommendationCriteria) {
			if score.Disqualified {
				continue
			}
			eligible = append(eligible, score)
			if len(eligible) == 3 {
				break
			}
		}
		if len(eligible) == 0 {
			continue
		}

		out = append(out, Recommendation{
			Project:      project,
			TopVerifiers: eligible,
			Urgency:      Urgency(&project, now),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Urgency > out[j].Urgency
	})
	return out, nil
}

// Urgency scores how pressing an unassigned project is, from 0 to 100
func Urgency(project *directory.Project, now time.Time) float64 {
	urgency := 50 + urgencyWeights[project.Priority]

	if project.SubmittedAt != nil {
		age := now.Sub(*project.SubmittedAt)
		switch {
		case age > 7*24*time.Hour:
			urgency += 30
		case age > 3*24*time.Hour:
			urgency += 15
		}
	}

	switch {
	case project.ExpectedCredits > 10000:
		urgency += 15
	case project.ExpectedCredits > 5000:
		urgency += 10
	}
	return clamp(urgency, 0, 100)
}

// =====================================================
// Export
// =====================================================

// Export formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

var workloadColumns = []export.Column{
	{Key: "verifier_id", Title: "Verifier ID", Width: 38},
	{Key: "name", Title: "Name"},
	{Key: "workload", Title: "Active Verifications"},
	{Key: "total_completed", Title: "Completed"},
	{Key: "average_score", Title: "Average Quality"},
	{Key: "on_time_rate", Title: "On-time Rate %"},
	{Key: "overdue_count", Title: "Overdue"},
	{Key: "specialties", Title: "Specialties"},
}

// ExportWorkload renders the workload distribution as an XLSX workbook with a
// summary sheet, as a PDF report, or as CSV
func (s *Service) ExportWorkload(ctx context.Context, format string) ([]byte, error) {
	distribution, err := s.GetWorkloadDistribution(ctx)
	if err != nil {
		return nil, err
	}

	table := export.Table{Sheet: "Workload", Columns: workloadColumns}
	loads := make([]float64, 0, len(distribution))
	for _, e := range distribution {
		table.Rows = append(table.Rows, map[string]interface{}{
			"verifier_id":     e.VerifierID.String(),
			"name":            e.Name,
			"workload":        e.Workload,
			"total_completed": e.TotalCompleted,
			"average_score":   e.AverageScore,
			"on_time_rate":    e.OnTimeRate,
			"overdue_count":   e.OverdueCount,
			"specialties":     e.Specialties,
		})
		loads = append(loads, float64(e.Workload))
	}

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		if err := export.WriteCSV(&buf, table); err != nil {
			return nil, fmt.Errorf("failed to write workload csv: %w", err)
		}
		return buf.Bytes(), nil
	case FormatPDF:
		summary := summaryTable(loads, s.clock.Now())
		fields := make([]export.Field, 0, len(summary.Rows))
		for _, row := range summary.Rows {
			fields = append(fields, export.Field{Label: row["metric"].(string), Value: row["value"]})
		}
		doc := export.NewPDFDocument(export.DefaultPDFOptions("Verifier Workload"), s.clock.Now())
		doc.AddFields("Summary", fields)
		doc.AddTable("Workload", table)
		return doc.Bytes()
	case FormatXLSX, "":
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", apperrors.ErrValidation, format)
	}

	exporter, err := export.NewExcelExporter(export.DefaultExcelOptions())
	if err != nil {
		return nil, err
	}
	defer exporter.Close()

	if err := exporter.AddTable(table); err != nil {
		return nil, err
	}
	if err := exporter.AddTable(summaryTable(loads, s.clock.Now())); err != nil {
		return nil, err
	}
	if _, err := exporter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workload workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryTable(loads []float64, generatedAt time.Time) export.Table {
	table := export.Table{
		Sheet:   "Summary",
		Columns: []export.Column{{Key: "metric", Title: "Metric"}, {Key: "value", Title: "Value"}},
	}
	add := func(metric string, value interface{}) {
		table.Rows = append(table.Rows, map[string]interface{}{"metric": metric, "value": value})
	}

	add("Generated At", generatedAt)
	add("Verifiers", len(loads))
	if len(loads) == 0 {
		return table
	}
	if mean, err := stats.Mean(loads); err == nil {
		add("Mean Workload", mean)
	}
	if median, err := stats.Median(loads); err == nil {
		add("Median Workload", median)
	}
	if sd, err := stats.StandardDeviation(loads); err == nil {
		add("Workload Std Dev", sd)
	}
	if peak, err := stats.Max(loads); err == nil {
		add("Max Workload", peak)
	}
	return table
}
