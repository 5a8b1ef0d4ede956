package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles and hierarchy edges.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description, department string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description, department string) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) error
	LiveRolesExist(ctx context.Context, ids []int64) (bool, error)
	ListEdges(ctx context.Context) ([]Edge, error)
	CreateEdge(ctx context.Context, parentID, childID int64) (Edge, error)
	DeleteEdge(ctx context.Context, id int64) error
}

// Invalidator drops cached access results after a mutation.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles role and hierarchy business logic.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListRoles returns all live roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description, department string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description), strings.TrimSpace(department))
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description, department string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description), strings.TrimSpace(department))
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	return role, nil
}

// DeleteRole soft-deletes a role. Its assignments stop contributing to
// access resolution immediately.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListEdges returns the hierarchy edge set.
func (s *Service) ListEdges(ctx context.Context) ([]Edge, error) {
	return s.repo.ListEdges(ctx)
}

// CreateEdge inserts a hierarchy edge after verifying both roles exist
// and the edge keeps the graph acyclic. A rejected cycle blocks the
// write; it is not advisory.
func (s *Service) CreateEdge(ctx context.Context, parentID, childID int64) (Edge, error) {
	ok, err := s.repo.LiveRolesExist(ctx, []int64{parentID, childID})
	if err != nil {
		return Edge{}, err
	}
	if !ok {
		return Edge{}, fmt.Errorf("%w: role %d or %d", httpx.ErrNotFound, parentID, childID)
	}

	edges, err := s.repo.ListEdges(ctx)
	if err != nil {
		return Edge{}, err
	}
	hierarchy := access.NewHierarchy(hierarchyEdges(edges))
	if hierarchy.WouldCreateCycle(parentID, childID) {
		return Edge{}, fmt.Errorf("%w: %d -> %d", access.ErrCycleRejected, parentID, childID)
	}

	edge, err := s.repo.CreateEdge(ctx, parentID, childID)
	if err != nil {
		return Edge{}, err
	}
	s.invalidate(ctx)
	return edge, nil
}

// DeleteEdge physically removes a hierarchy edge.
func (s *Service) DeleteEdge(ctx context.Context, id int64) error {
	if err := s.repo.DeleteEdge(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump access cache", slog.Any("error", err))
	}
}

func hierarchyEdges(edges []Edge) []access.HierarchyEdge {
	out := make([]access.HierarchyEdge, len(edges))
	for i, e := range edges {
		out[i] = access.HierarchyEdge{ParentRoleID: e.ParentRoleID, ChildRoleID: e.ChildRoleID}
	}
	return out
}
