package roles

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/meridian-iam/meridian-iam/internal/access"
	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

type stubRepo struct {
	roles    map[int64]Role
	edges    []Edge
	nextEdge int64
}

func newStubRepo(roleIDs ...int64) *stubRepo {
	repo := &stubRepo{roles: map[int64]Role{}, nextEdge: 1}
	for _, id := range roleIDs {
		repo.roles[id] = Role{ID: id}
	}
	return repo
}

func (s *stubRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	return role, nil
}

func (s *stubRepo) CreateRole(ctx context.Context, name, description, department string) (Role, error) {
	role := Role{ID: int64(len(s.roles) + 1), Name: name, Description: description, Department: department}
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubRepo) UpdateRole(ctx context.Context, id int64, name, description, department string) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	role.Name = name
	s.roles[id] = role
	return role, nil
}

func (s *stubRepo) SoftDeleteRole(ctx context.Context, id int64) error {
	if _, ok := s.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *stubRepo) LiveRolesExist(ctx context.Context, ids []int64) (bool, error) {
	for _, id := range ids {
		if _, ok := s.roles[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *stubRepo) ListEdges(ctx context.Context) ([]Edge, error) {
	return s.edges, nil
}

func (s *stubRepo) CreateEdge(ctx context.Context, parentID, childID int64) (Edge, error) {
	edge := Edge{ID: s.nextEdge, ParentRoleID: parentID, ChildRoleID: childID}
	s.nextEdge++
	s.edges = append(s.edges, edge)
	return edge, nil
}

func (s *stubRepo) DeleteEdge(ctx context.Context, id int64) error {
	for i, edge := range s.edges {
		if edge.ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func newTestService(repo RepositoryPort, cache Invalidator) *Service {
	return NewService(repo, cache, slog.New(slog.DiscardHandler))
}

func TestCreateEdgeRejectsCycle(t *testing.T) {
	repo := newStubRepo(1, 2, 3)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.CreateEdge(ctx, 1, 2); err != nil {
		t.Fatalf("create edge 1->2: %v", err)
	}
	if _, err := svc.CreateEdge(ctx, 2, 3); err != nil {
		t.Fatalf("create edge 2->3: %v", err)
	}

	// Closing the path back to the top must be blocked before persistence.
	if _, err := svc.CreateEdge(ctx, 3, 1); !errors.Is(err, access.ErrCycleRejected) {
		t.Fatalf("expected ErrCycleRejected, got %v", err)
	}
	if len(repo.edges) != 2 {
		t.Fatalf("rejected edge must not be persisted, have %d edges", len(repo.edges))
	}

	if _, err := svc.CreateEdge(ctx, 1, 1); !errors.Is(err, access.ErrCycleRejected) {
		t.Fatalf("self edge must be rejected, got %v", err)
	}
}

func TestCreateEdgeRequiresLiveRoles(t *testing.T) {
	svc := newTestService(newStubRepo(1), nil)

	if _, err := svc.CreateEdge(context.Background(), 1, 99); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing role, got %v", err)
	}
}

func TestMutationsBumpAccessCache(t *testing.T) {
	repo := newStubRepo(1, 2)
	cache := &countingInvalidator{}
	svc := newTestService(repo, cache)
	ctx := context.Background()

	if _, err := svc.CreateEdge(ctx, 1, 2); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	if err := svc.DeleteRole(ctx, 2); err != nil {
		t.Fatalf("delete role: %v", err)
	}
	if cache.bumps != 2 {
		t.Fatalf("expected 2 cache bumps, got %d", cache.bumps)
	}
}

func TestCreateRoleValidatesName(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)

	if _, err := svc.CreateRole(context.Background(), "  ", "", ""); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
