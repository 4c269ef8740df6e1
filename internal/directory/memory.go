package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

// MemoryStore implements UserDirectory and ProjectDirectory in memory. It backs
// tests and the API's in-memory mode.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]User
	projects map[uuid.UUID]Project
}

// NewMemoryStore creates an empty directory
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]User),
		projects: make(map[uuid.UUID]Project),
	}
}

// PutUser inserts or replaces a user
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutProject inserts or replaces a project
func (s *MemoryStore) PutProject(p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// DeleteProject removes a project, simulating an out-of-band deletion
func (s *MemoryStore) DeleteProject(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
}

func (s *MemoryStore) ActiveVerifiers(ctx context.Context, exclude []uuid.UUID) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var out []User
	for _, u := range s.users {
		if u.Role == RoleVerifier && u.IsActive && !skip[u.ID] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return &u, nil
}

func (s *MemoryStore) SetWorkload(ctx context.Context, id uuid.UUID, workload int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	u.CurrentWorkload = workload
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", apperrors.ErrNotFound, id)
	}
	return &p, nil
}

func (s *MemoryStore) PatchProjectStatus(ctx context.Context, id uuid.UUID, patch ProjectPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("%w: project %s", apperrors.ErrNotFound, id)
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.VerificationStatus != nil {
		p.VerificationStatus = *patch.VerificationStatus
	}
	if patch.ClearAssignedVerifier {
		p.AssignedVerifierID = nil
	} else if patch.AssignedVerifierID != nil {
		verifierID := *patch.AssignedVerifierID
		p.AssignedVerifierID = &verifierID
	}
	if patch.SubmittedAt != nil {
		at := *patch.SubmittedAt
		p.SubmittedAt = &at
	}
	p.UpdatedAt = time.Now()
	s.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) ListUnassigned(ctx context.Context, limit int) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Project
	for _, p := range s.projects {
		if p.Status == ProjectStatusSubmitted &&
			p.VerificationStatus == VerificationStatusPending &&
			p.AssignedVerifierID == nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SubmittedAt, out[j].SubmittedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID.String() < out[j].ID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID.String() < out[j].ID.String()
		}
		return a.Before(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
