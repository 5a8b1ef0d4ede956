package features

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

type stubRepo struct {
	features  map[int64]Feature
	grants    map[int64]Grant
	liveRoles map[int64]bool
	nextID    int64
}

func newStubRepo(seed ...Feature) *stubRepo {
	repo := &stubRepo{
		features:  map[int64]Feature{},
		grants:    map[int64]Grant{},
		liveRoles: map[int64]bool{},
		nextID:    100,
	}
	for _, f := range seed {
		repo.features[f.ID] = f
	}
	return repo
}

func (s *stubRepo) ListFeatures(ctx context.Context) ([]Feature, error) {
	var out []Feature
	for _, f := range s.features {
		out = append(out, f)
	}
	return out, nil
}

func (s *stubRepo) GetFeature(ctx context.Context, id int64) (Feature, error) {
	f, ok := s.features[id]
	if !ok {
		return Feature{}, httpx.ErrNotFound
	}
	return f, nil
}

func (s *stubRepo) CreateFeature(ctx context.Context, f Feature) (Feature, error) {
	f.ID = s.nextID
	s.nextID++
	s.features[f.ID] = f
	return f, nil
}

func (s *stubRepo) UpdateFeature(ctx context.Context, f Feature) (Feature, error) {
	cur, ok := s.features[f.ID]
	if !ok {
		return Feature{}, httpx.ErrNotFound
	}
	f.ParentID, f.Level = cur.ParentID, cur.Level
	s.features[f.ID] = f
	return f, nil
}

func (s *stubRepo) SoftDeleteFeature(ctx context.Context, id int64) error {
	if _, ok := s.features[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.features, id)
	return nil
}

func (s *stubRepo) ReparentFeature(ctx context.Context, id, newParentID int64, newLevel int) error {
	f, ok := s.features[id]
	if !ok {
		return httpx.ErrNotFound
	}
	f.ParentID, f.Level = newParentID, newLevel
	s.features[id] = f
	return nil
}

func (s *stubRepo) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	var out []Grant
	for _, g := range s.grants {
		if roleID == 0 || g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubRepo) AttachRole(ctx context.Context, roleID, featureID int64) (Grant, error) {
	for _, g := range s.grants {
		if g.RoleID == roleID && g.FeatureID == featureID {
			return Grant{}, httpx.ErrDuplicate
		}
	}
	g := Grant{ID: s.nextID, RoleID: roleID, FeatureID: featureID, IsActive: true}
	s.nextID++
	s.grants[g.ID] = g
	return g, nil
}

func (s *stubRepo) SetGrantActive(ctx context.Context, grantID int64, active bool) error {
	g, ok := s.grants[grantID]
	if !ok {
		return httpx.ErrNotFound
	}
	g.IsActive = active
	s.grants[grantID] = g
	return nil
}

func (s *stubRepo) DetachRole(ctx context.Context, grantID int64) error {
	if _, ok := s.grants[grantID]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.grants, grantID)
	return nil
}

func (s *stubRepo) LiveRoleExists(ctx context.Context, id int64) (bool, error) {
	return s.liveRoles[id], nil
}

type countingInvalidator struct {
	bumps int
	err   error
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return c.err
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, nil, slog.New(slog.DiscardHandler))
}

func TestCreateFeatureDerivesLevelFromParent(t *testing.T) {
	repo := newStubRepo(Feature{ID: 1, Name: "Root", Level: 0})
	svc := newTestService(repo)

	child, err := svc.CreateFeature(context.Background(), Feature{ParentID: 1, Name: "Child", Level: 7})
	if err != nil {
		t.Fatalf("create feature: %v", err)
	}
	if child.Level != 1 {
		t.Fatalf("expected level 1, got %d", child.Level)
	}

	root, err := svc.CreateFeature(context.Background(), Feature{Name: "Another Root", Level: 3})
	if err != nil {
		t.Fatalf("create root feature: %v", err)
	}
	if root.Level != 0 {
		t.Fatalf("expected root level 0, got %d", root.Level)
	}
}

func TestCreateFeatureRejectsMissingParent(t *testing.T) {
	svc := newTestService(newStubRepo())

	if _, err := svc.CreateFeature(context.Background(), Feature{ParentID: 42, Name: "Orphan"}); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReparentRejectsOwnSubtree(t *testing.T) {
	repo := newStubRepo(
		Feature{ID: 1, Name: "Root", Level: 0},
		Feature{ID: 2, ParentID: 1, Name: "Mid", Level: 1},
		Feature{ID: 3, ParentID: 2, Name: "Leaf", Level: 2},
	)
	svc := newTestService(repo)
	ctx := context.Background()

	if err := svc.ReparentFeature(ctx, 1, 1); !errors.Is(err, httpx.ErrConflict) {
		t.Fatalf("self parent: expected ErrConflict, got %v", err)
	}
	if err := svc.ReparentFeature(ctx, 1, 3); !errors.Is(err, httpx.ErrConflict) {
		t.Fatalf("descendant parent: expected ErrConflict, got %v", err)
	}

	// A legal move recomputes the stored level from the new parent.
	if err := svc.ReparentFeature(ctx, 3, 1); err != nil {
		t.Fatalf("reparent leaf under root: %v", err)
	}
	if got := repo.features[3]; got.ParentID != 1 || got.Level != 1 {
		t.Fatalf("leaf after move: parent=%d level=%d", got.ParentID, got.Level)
	}
}

func TestAttachRoleValidatesBothEnds(t *testing.T) {
	repo := newStubRepo(Feature{ID: 1, Name: "Reports", Level: 0})
	repo.liveRoles[10] = true
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.AttachRole(ctx, 99, 1); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("missing role: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.AttachRole(ctx, 10, 42); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("missing feature: expected ErrNotFound, got %v", err)
	}

	grant, err := svc.AttachRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("attach grant: %v", err)
	}
	if !grant.IsActive {
		t.Fatal("expected new grant to start active")
	}
	if _, err := svc.AttachRole(ctx, 10, 1); !errors.Is(err, httpx.ErrDuplicate) {
		t.Fatalf("repeat attach: expected ErrDuplicate, got %v", err)
	}
}

func TestSuspendedGrantKeepsItsRow(t *testing.T) {
	repo := newStubRepo(Feature{ID: 1, Name: "Reports", Level: 0})
	repo.liveRoles[10] = true
	svc := newTestService(repo)
	ctx := context.Background()

	grant, err := svc.AttachRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("attach grant: %v", err)
	}
	if err := svc.SetGrantActive(ctx, grant.ID, false); err != nil {
		t.Fatalf("suspend grant: %v", err)
	}
	grants, err := svc.ListGrants(ctx, 10)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 || grants[0].IsActive {
		t.Fatalf("expected one suspended grant, got %+v", grants)
	}

	if err := svc.DetachRole(ctx, grant.ID); err != nil {
		t.Fatalf("detach grant: %v", err)
	}
	if err := svc.SetGrantActive(ctx, grant.ID, true); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("resume after detach: expected ErrNotFound, got %v", err)
	}
}

func TestGrantMutationsBumpAccessCache(t *testing.T) {
	repo := newStubRepo(Feature{ID: 1, Name: "Reports", Level: 0})
	repo.liveRoles[10] = true
	cache := &countingInvalidator{}
	svc := NewService(repo, cache, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	grant, err := svc.AttachRole(ctx, 10, 1)
	if err != nil {
		t.Fatalf("attach grant: %v", err)
	}
	if err := svc.SetGrantActive(ctx, grant.ID, false); err != nil {
		t.Fatalf("suspend grant: %v", err)
	}
	if err := svc.DetachRole(ctx, grant.ID); err != nil {
		t.Fatalf("detach grant: %v", err)
	}
	if cache.bumps != 3 {
		t.Fatalf("expected 3 cache bumps, got %d", cache.bumps)
	}
}

func TestNewServiceToleratesNilLogger(t *testing.T) {
	repo := newStubRepo(Feature{ID: 1, Name: "Reports", Level: 0})
	cache := &countingInvalidator{err: errors.New("redis down")}
	svc := NewService(repo, cache, nil)

	// The failed bump is logged through the defaulted logger; it must not
	// fail the mutation or panic.
	if err := svc.DeleteFeature(context.Background(), 1); err != nil {
		t.Fatalf("delete feature: %v", err)
	}
	if cache.bumps != 1 {
		t.Fatalf("expected 1 cache bump, got %d", cache.bumps)
	}
}
