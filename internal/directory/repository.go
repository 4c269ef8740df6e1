package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// UserDirectory is the read side of user management the verification core needs
type UserDirectory interface {
	// ActiveVerifiers returns active users with the verifier role, ordered by id,
	// leaving out the excluded ids.
	ActiveVerifiers(ctx context.Context, exclude []uuid.UUID) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	SetWorkload(ctx context.Context, id uuid.UUID, workload int) error
}

// ProjectDirectory exposes the project fields the verification core reads and patches
type ProjectDirectory interface {
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	PatchProjectStatus(ctx context.Context, id uuid.UUID, patch ProjectPatch) error
	// ListUnassigned returns submitted projects still pending verification with
	// no verifier, oldest submission first.
	ListUnassigned(ctx context.Context, limit int) ([]Project, error)
}

type postgresUsers struct {
	db *sqlx.DB
}

// NewUserRepository returns a UserDirectory backed by the users table
func NewUserRepository(db *sqlx.DB) UserDirectory {
	return &postgresUsers{db: db}
}

const userColumns = `id, email, phone, full_name, role, is_active, specialties, current_workload, created_at, updated_at`

func (r *postgresUsers) ActiveVerifiers(ctx context.Context, exclude []uuid.UUID) ([]User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE role = $1 AND is_active = TRUE"
	args := []interface{}{RoleVerifier}

	if len(exclude) > 0 {
		ids := make([]string, len(exclude))
		for i, id := range exclude {
			ids[i] = id.String()
		}
		query += " AND NOT (id = ANY($2::uuid[]))"
		args = append(args, pq.Array(ids))
	}
	query += " ORDER BY id"

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list active verifiers: %w", err)
	}
	return users, nil
}

func (r *postgresUsers) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *postgresUsers) SetWorkload(ctx context.Context, id uuid.UUID, workload int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET current_workload = $1, updated_at = $2 WHERE id = $3",
		workload, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update workload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return nil
}

type postgresProjects struct {
	db *sqlx.DB
}

// NewProjectRepository returns a ProjectDirectory backed by the projects table
func NewProjectRepository(db *sqlx.DB) ProjectDirectory {
	return &postgresProjects{db: db}
}

const projectColumns = `id, name, project_type, priority, submitted_at, expected_credits, creator_id,
	assigned_verifier_id, verification_status, status, created_at, updated_at`

func (r *postgresProjects) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.GetContext(ctx, &project, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *postgresProjects) PatchProjectStatus(ctx context.Context, id uuid.UUID, patch ProjectPatch) error {
	sets := []string{}
	args := []interface{}{}
	argCount := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argCount))
		args = append(args, value)
		argCount++
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.VerificationStatus != nil {
		add("verification_status", *patch.VerificationStatus)
	}
	if patch.ClearAssignedVerifier {
		sets = append(sets, "assigned_verifier_id = NULL")
	} else if patch.AssignedVerifierID != nil {
		add("assigned_verifier_id", *patch.AssignedVerifierID)
	}
	if patch.SubmittedAt != nil {
		add("submitted_at", *patch.SubmittedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now())

	query := fmt.Sprintf("UPDATE projects SET %s WHERE id = $%d", strings.Join(sets, ", "), argCount)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to patch project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: project %s", apperrors.ErrNotFound, id)
	}
	return nil
}

func (r *postgresProjects) ListUnassigned(ctx context.Context, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 20
	}
	var projects []Project
	err := r.db.SelectContext(ctx, &projects, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE status = $1 AND verification_status = $2 AND assigned_verifier_id IS NULL
		ORDER BY submitted_at ASC NULLS LAST, id
		LIMIT $3`,
		ProjectStatusSubmitted, VerificationStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned projects: %w", err)
	}
	return projects, nil
}
