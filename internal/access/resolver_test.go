package access

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

type stubStore struct {
	mappings     map[int64][]RoleMapping
	liveRoles    map[int64]struct{}
	edges        []HierarchyEdge
	features     []FeatureRecord
	pages        []PageRecord
	pageFeatures []PageFeatureMapping
	roleFeatures []RoleFeatureMapping
	permissions  map[int64][]PermissionRecord

	mappingCalls int
}

func (s *stubStore) ActiveRoleMappings(ctx context.Context, userID int64) ([]RoleMapping, error) {
	s.mappingCalls++
	return s.mappings[userID], nil
}

func (s *stubStore) LiveRoleIDs(ctx context.Context) (map[int64]struct{}, error) {
	if s.liveRoles == nil {
		return map[int64]struct{}{}, nil
	}
	return s.liveRoles, nil
}

func (s *stubStore) HierarchyEdges(ctx context.Context) ([]HierarchyEdge, error) {
	return s.edges, nil
}

func (s *stubStore) FeatureCatalog(ctx context.Context) ([]FeatureRecord, error) {
	return s.features, nil
}

func (s *stubStore) PageCatalog(ctx context.Context) ([]PageRecord, error) {
	return s.pages, nil
}

func (s *stubStore) PageFeatureMappings(ctx context.Context) ([]PageFeatureMapping, error) {
	return s.pageFeatures, nil
}

func (s *stubStore) RoleFeatureMappings(ctx context.Context, roleIDs []int64) ([]RoleFeatureMapping, error) {
	requested := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		requested[id] = struct{}{}
	}
	var out []RoleFeatureMapping
	for _, rf := range s.roleFeatures {
		if _, ok := requested[rf.RoleID]; ok {
			out = append(out, rf)
		}
	}
	return out, nil
}

func (s *stubStore) PermissionAssociations(ctx context.Context, roleIDs []int64) ([]PermissionRecord, error) {
	seen := map[int64]struct{}{}
	var out []PermissionRecord
	for _, id := range roleIDs {
		for _, perm := range s.permissions[id] {
			if _, dup := seen[perm.ID]; dup {
				continue
			}
			seen[perm.ID] = struct{}{}
			out = append(out, perm)
		}
	}
	return out, nil
}

type stubRecorder struct {
	resolutions int
	corruptions int
}

func (r *stubRecorder) ResolutionObserved(d time.Duration, err error) { r.resolutions++ }
func (r *stubRecorder) CorruptionDetected()                           { r.corruptions++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// scenarioStore builds the reference fixture: user 7 holds role 1, role 1
// inherits from role 2, role 1 grants feature 10, role 2 grants feature
// 20 which carries page 200.
func scenarioStore() *stubStore {
	return &stubStore{
		mappings: map[int64][]RoleMapping{
			7: {{RoleID: 1, IsActive: true}},
		},
		liveRoles: map[int64]struct{}{1: {}, 2: {}},
		edges:     []HierarchyEdge{{ParentRoleID: 2, ChildRoleID: 1}},
		features: []FeatureRecord{
			{ID: 10, Name: "Dashboard", IsMainMenu: true, IsActive: true},
			{ID: 20, Name: "Reports", IsMainMenu: true, IsActive: true},
		},
		pages:        []PageRecord{{ID: 200, Name: "Monthly Report", Route: "/reports/monthly"}},
		pageFeatures: []PageFeatureMapping{{PageID: 200, FeatureID: 20}},
		roleFeatures: []RoleFeatureMapping{
			{RoleID: 1, FeatureID: 10, IsActive: true},
			{RoleID: 2, FeatureID: 20, IsActive: true},
		},
		permissions: map[int64][]PermissionRecord{
			1: {{ID: 1, Name: "dashboard.view"}},
			2: {{ID: 2, Name: "reports.view"}},
		},
	}
}

func newTestResolver(store Store) *Resolver {
	return NewResolver(store, Options{Logger: discardLogger()})
}

func TestResolveUserAccessNoRoles(t *testing.T) {
	resolver := newTestResolver(&stubStore{})
	result, err := resolver.ResolveUserAccess(context.Background(), 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(result.Features) != 0 || len(result.Pages) != 0 || len(result.Permissions) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestResolveUserAccessInheritsThroughHierarchy(t *testing.T) {
	store := scenarioStore()
	resolver := newTestResolver(store)

	result, err := resolver.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, id := range []int64{10, 20} {
		if !result.HasFeature(id) {
			t.Fatalf("expected feature %d in %+v", id, result)
		}
	}
	if !result.HasPage(200) {
		t.Fatalf("expected page 200 in %+v", result)
	}
	if got := result.PermissionNames(); !reflect.DeepEqual(got, []string{"dashboard.view", "reports.view"}) {
		t.Fatalf("unexpected permissions %v", got)
	}
}

func TestResolveDeactivatedRoleFeatureMapping(t *testing.T) {
	store := scenarioStore()
	store.roleFeatures[1].IsActive = false

	result, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasFeature(20) {
		t.Fatalf("deactivated role-feature mapping must not grant feature 20")
	}
	if result.HasPage(200) {
		t.Fatalf("page 200 must disappear with its feature")
	}
	if !result.HasFeature(10) {
		t.Fatalf("direct grant must survive")
	}
}

func TestResolveInactiveUserRoleMappingIgnored(t *testing.T) {
	store := scenarioStore()
	store.mappings[7] = []RoleMapping{{RoleID: 1, IsActive: false}}

	result, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(result.Features) != 0 {
		t.Fatalf("inactive mapping must not contribute, got %+v", result)
	}
}

func TestResolveSoftDeletedRoleIgnored(t *testing.T) {
	store := scenarioStore()
	delete(store.liveRoles, 2)

	result, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasFeature(20) {
		t.Fatalf("soft-deleted role 2 must contribute nothing")
	}
	if !result.HasFeature(10) {
		t.Fatalf("live role 1 must still grant feature 10")
	}
}

func TestResolveExcludesInvalidFeaturesAndPages(t *testing.T) {
	store := scenarioStore()
	store.features[1].Lifecycle = LifecycleSoftDeleted

	result, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasFeature(20) {
		t.Fatalf("soft-deleted feature must be excluded even when reachable")
	}
	if result.HasPage(200) {
		t.Fatalf("pages of an excluded feature must be excluded")
	}

	store = scenarioStore()
	store.features[1].IsActive = false
	result, err = newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasFeature(20) {
		t.Fatalf("inactive feature must be excluded even when reachable")
	}

	store = scenarioStore()
	store.pages[0].Lifecycle = LifecycleSoftDeleted
	result, err = newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasPage(200) {
		t.Fatalf("soft-deleted page must be excluded")
	}
}

func TestResolveSkipsDanglingReferences(t *testing.T) {
	store := scenarioStore()
	store.roleFeatures = append(store.roleFeatures, RoleFeatureMapping{RoleID: 1, FeatureID: 999, IsActive: true})
	store.pageFeatures = append(store.pageFeatures, PageFeatureMapping{PageID: 888, FeatureID: 10})

	result, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("dangling references must not fail the call: %v", err)
	}
	if result.HasFeature(999) || result.HasPage(888) {
		t.Fatalf("dangling references must be skipped, got %+v", result)
	}
}

func TestResolveMonotonicUnderAddedRole(t *testing.T) {
	store := scenarioStore()
	before, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	store.liveRoles[3] = struct{}{}
	store.roleFeatures = append(store.roleFeatures, RoleFeatureMapping{RoleID: 3, FeatureID: 30, IsActive: true})
	store.features = append(store.features, FeatureRecord{ID: 30, Name: "Admin", IsMainMenu: true, IsActive: true})
	store.mappings[7] = append(store.mappings[7], RoleMapping{RoleID: 3, IsActive: true})

	after, err := newTestResolver(store).ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for id := range before.Features {
		if !after.HasFeature(id) {
			t.Fatalf("adding a role removed feature %d", id)
		}
	}
	for id := range before.Pages {
		if !after.HasPage(id) {
			t.Fatalf("adding a role removed page %d", id)
		}
	}
	if !after.HasFeature(30) {
		t.Fatalf("new role grant missing")
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := scenarioStore()
	resolver := newTestResolver(store)

	first, err := resolver.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := resolver.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution must be idempotent against an unchanged store:\n%+v\n%+v", first, second)
	}
}

func TestResolveCorruptedHierarchy(t *testing.T) {
	store := scenarioStore()
	store.edges = append(store.edges, HierarchyEdge{ParentRoleID: 1, ChildRoleID: 2})

	recorder := &stubRecorder{}
	resolver := NewResolver(store, Options{Logger: discardLogger(), Recorder: recorder})
	result, err := resolver.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("degrade policy must serve partial results: %v", err)
	}
	if recorder.corruptions != 1 {
		t.Fatalf("expected one corruption signal, got %d", recorder.corruptions)
	}
	if !result.HasFeature(10) {
		t.Fatalf("partial results must include direct grants")
	}

	strict := NewResolver(store, Options{Logger: discardLogger(), Policy: PolicyFail})
	if _, err := strict.ResolveUserAccess(context.Background(), 7); !errors.Is(err, ErrHierarchyCorrupted) {
		t.Fatalf("fail policy must surface ErrHierarchyCorrupted, got %v", err)
	}
}

func TestResolveDescendantsDirection(t *testing.T) {
	store := scenarioStore()
	// Flip the edge so role 1 is the parent delegating downward to role 2.
	store.edges = []HierarchyEdge{{ParentRoleID: 1, ChildRoleID: 2}}

	resolver := NewResolver(store, Options{Logger: discardLogger(), Direction: DirectionDescendants})
	result, err := resolver.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !result.HasFeature(20) {
		t.Fatalf("descendant role grants must apply under DirectionDescendants")
	}

	ancestors := NewResolver(store, Options{Logger: discardLogger(), Direction: DirectionAncestors})
	result, err = ancestors.ResolveUserAccess(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.HasFeature(20) {
		t.Fatalf("edge direction must not leak across policies")
	}
}

func TestResolveNavigationUsesSingleSnapshot(t *testing.T) {
	store := scenarioStore()
	resolver := newTestResolver(store)

	tree, err := resolver.ResolveNavigation(context.Background(), 7)
	if err != nil {
		t.Fatalf("resolve navigation: %v", err)
	}
	if len(tree.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree.Roots))
	}
	if store.mappingCalls != 1 {
		t.Fatalf("expected one snapshot fetch, got %d", store.mappingCalls)
	}
}
