package verification

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"carbon-scribe/project-portal/verification-backend/internal/auth"
	"carbon-scribe/project-portal/verification-backend/internal/reports/export"
)

var checklistColumns = []export.Column{
	{Key: "category", Title: "Category"},
	{Key: "weight", Title: "Weight"},
	{Key: "score", Title: "Score"},
	{Key: "notes", Title: "Notes"},
}

var annotationColumns = []export.Column{
	{Key: "document", Title: "Document"},
	{Key: "page", Title: "Page"},
	{Key: "text", Title: "Note"},
	{Key: "created_at", Title: "Added"},
}

// Report renders a verification record as a PDF for anyone allowed to view it
func (w *Workflow) Report(ctx context.Context, actor auth.Principal, id uuid.UUID) ([]byte, error) {
	record, err := w.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	projectName := record.ProjectID.String()
	if project, err := w.projects.GetProject(ctx, record.ProjectID); err == nil {
		projectName = project.Name
	}
	verifierName := record.VerifierID.String()
	if verifier, err := w.users.GetUser(ctx, record.VerifierID); err == nil && verifier.FullName != "" {
		verifierName = verifier.FullName
	}

	opts := export.DefaultPDFOptions("Verification Report")
	opts.Subtitle = projectName
	doc := export.NewPDFDocument(opts, w.clock.Now())

	fields := []export.Field{
		{Label: "Verification", Value: record.ID.String()},
		{Label: "Verifier", Value: verifierName},
		{Label: "Status", Value: string(record.Status)},
		{Label: "Priority", Value: string(record.Priority)},
		{Label: "Assigned", Value: record.AssignedAt},
		{Label: "Due", Value: record.DueDate},
		{Label: "Started", Value: record.StartedAt},
		{Label: "Completed", Value: record.CompletedAt},
		{Label: "Overall Score", Value: optionalScore(record.OverallScore)},
		{Label: "Quality Score", Value: optionalScore(record.QualityScore)},
	}
	if record.RejectionReason != nil {
		fields = append(fields, export.Field{Label: "Rejection Reason", Value: *record.RejectionReason})
	}
	doc.AddFields("Summary", fields)
	doc.AddTable("Checklist", checklistTable(record.Categories.Data()))
	doc.AddTable("Annotations", annotationTable(record.Annotations.Data()))
	doc.AddText("Revision Requests", joinLines(record.RevisionRequests))
	doc.AddText("Notes", record.Notes)

	return doc.Bytes()
}

func checklistTable(categories Categories) export.Table {
	names := make([]string, 0, len(CategoryWeights))
	for category := range CategoryWeights {
		names = append(names, string(category))
	}
	sort.Strings(names)

	table := export.Table{Sheet: "Checklist", Columns: checklistColumns}
	for _, name := range names {
		entry := categories[Category(name)]
		table.Rows = append(table.Rows, map[string]interface{}{
			"category": name,
			"weight":   CategoryWeights[Category(name)],
			"score":    optionalScore(entry.Score),
			"notes":    entry.Notes,
		})
	}
	return table
}

func annotationTable(annotations []Annotation) export.Table {
	table := export.Table{Sheet: "Annotations", Columns: annotationColumns}
	for _, a := range annotations {
		table.Rows = append(table.Rows, map[string]interface{}{
			"document":   a.DocumentID,
			"page":       a.Page,
			"text":       a.Text,
			"created_at": a.CreatedAt,
		})
	}
	return table
}

func optionalScore(score *float64) interface{} {
	if score == nil {
		return "-"
	}
	return *score
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "- " + strings.Join(lines, "\n- ")
}
