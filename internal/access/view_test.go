package access

import "testing"

func accessTo(featureIDs []int64, pageIDs ...int64) Result {
	res := NewResult()
	for _, id := range featureIDs {
		res.Features[id] = struct{}{}
	}
	for _, id := range pageIDs {
		res.Pages[id] = struct{}{}
	}
	return res
}

func TestBuildViewReparentsAcrossHiddenAncestor(t *testing.T) {
	// Root(1) -> Mid(2) -> Leaf(3); Mid is soft deleted. The stored Level
	// of Leaf still claims depth 2 and must not drive placement.
	catalog := []FeatureRecord{
		{ID: 1, Name: "Root", Level: 0, IsMainMenu: true, IsActive: true},
		{ID: 2, ParentID: 1, Name: "Mid", Level: 1, IsMainMenu: true, IsActive: true, Lifecycle: LifecycleSoftDeleted},
		{ID: 3, ParentID: 2, Name: "Leaf", Level: 2, IsMainMenu: true, IsActive: true},
	}

	tree := BuildView(accessTo([]int64{1, 3}), catalog, nil, nil)
	if len(tree.Roots) != 1 || tree.Roots[0].ID != 1 {
		t.Fatalf("expected single root 1, got %+v", tree.Roots)
	}
	root := tree.Roots[0]
	if len(root.Children) != 1 || root.Children[0].ID != 3 {
		t.Fatalf("expected leaf 3 under root, got %+v", root.Children)
	}
	if root.Children[0].Depth != 1 {
		t.Fatalf("depth must be recomputed from placement, got %d", root.Children[0].Depth)
	}
}

func TestBuildViewSoftDeleteLeavesSiblingsIntact(t *testing.T) {
	catalog := []FeatureRecord{
		{ID: 1, Name: "Root", IsMainMenu: true, IsActive: true},
		{ID: 2, ParentID: 1, Name: "Alpha", IsMainMenu: true, IsActive: true},
		{ID: 3, ParentID: 1, Name: "Beta", IsMainMenu: true, IsActive: true},
	}

	full := BuildView(accessTo([]int64{1, 2, 3}), catalog, nil, nil)
	if len(full.Roots[0].Children) != 2 {
		t.Fatalf("expected two children, got %+v", full.Roots[0].Children)
	}

	catalog[1].Lifecycle = LifecycleSoftDeleted
	trimmed := BuildView(accessTo([]int64{1, 2, 3}), catalog, nil, nil)
	children := trimmed.Roots[0].Children
	if len(children) != 1 || children[0].ID != 3 {
		t.Fatalf("expected only sibling 3 to survive, got %+v", children)
	}
}

func TestBuildViewOrdering(t *testing.T) {
	catalog := []FeatureRecord{
		{ID: 1, Name: "Zulu", DisplayOrder: 1, IsMainMenu: true, IsActive: true},
		{ID: 2, Name: "Alpha", DisplayOrder: 2, IsMainMenu: true, IsActive: true},
		{ID: 3, Name: "Bravo", DisplayOrder: 1, IsMainMenu: true, IsActive: true},
	}

	tree := BuildView(accessTo([]int64{1, 2, 3}), catalog, nil, nil)
	if len(tree.Roots) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(tree.Roots))
	}
	// DisplayOrder ascending, name breaks the tie between Bravo and Zulu.
	want := []int64{3, 1, 2}
	for i, id := range want {
		if tree.Roots[i].ID != id {
			t.Fatalf("position %d: expected feature %d, got %d", i, id, tree.Roots[i].ID)
		}
	}
}

func TestBuildViewMainMenuExclusion(t *testing.T) {
	catalog := []FeatureRecord{
		{ID: 1, Name: "Menu", IsMainMenu: true, IsActive: true},
		{ID: 2, Name: "Hidden", IsMainMenu: false, IsActive: true},
	}

	tree := BuildView(accessTo([]int64{1, 2}), catalog, nil, nil)
	if len(tree.Roots) != 1 || tree.Roots[0].ID != 1 {
		t.Fatalf("non-main-menu features must not appear in the tree, got %+v", tree.Roots)
	}
	if _, ok := tree.Routable(2); !ok {
		t.Fatalf("hidden feature must stay resolvable for direct-route checks")
	}
	if _, ok := tree.Routable(99); ok {
		t.Fatalf("inaccessible feature must not be routable")
	}
}

func TestBuildViewNestsPagesOrderedByName(t *testing.T) {
	catalog := []FeatureRecord{{ID: 1, Name: "Reports", IsMainMenu: true, IsActive: true}}
	pages := []PageRecord{
		{ID: 10, Name: "Yearly", Route: "/reports/yearly"},
		{ID: 11, Name: "Monthly", Route: "/reports/monthly"},
		{ID: 12, Name: "Removed", Route: "/reports/removed", Lifecycle: LifecycleSoftDeleted},
	}
	mappings := []PageFeatureMapping{
		{PageID: 10, FeatureID: 1},
		{PageID: 11, FeatureID: 1},
		{PageID: 12, FeatureID: 1},
	}

	tree := BuildView(accessTo([]int64{1}, 10, 11, 12), catalog, pages, mappings)
	node := tree.Roots[0]
	if len(node.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %+v", node.Pages)
	}
	if node.Pages[0].Name != "Monthly" || node.Pages[1].Name != "Yearly" {
		t.Fatalf("pages must be ordered by name, got %+v", node.Pages)
	}
}

func TestBuildViewPageOutsideResultExcluded(t *testing.T) {
	catalog := []FeatureRecord{{ID: 1, Name: "Reports", IsMainMenu: true, IsActive: true}}
	pages := []PageRecord{{ID: 10, Name: "Yearly", Route: "/reports/yearly"}}
	mappings := []PageFeatureMapping{{PageID: 10, FeatureID: 1}}

	tree := BuildView(accessTo([]int64{1}), catalog, pages, mappings)
	if len(tree.Roots[0].Pages) != 0 {
		t.Fatalf("page outside the resolved set must not surface, got %+v", tree.Roots[0].Pages)
	}
}

func TestBuildViewBreaksCorruptedParentChains(t *testing.T) {
	catalog := []FeatureRecord{
		{ID: 1, ParentID: 2, Name: "A", IsMainMenu: true, IsActive: true},
		{ID: 2, ParentID: 1, Name: "B", IsMainMenu: true, IsActive: true},
	}

	tree := BuildView(accessTo([]int64{1, 2}), catalog, nil, nil)
	if len(tree.Roots) != 1 {
		t.Fatalf("expected cycle broken into one root, got %+v", tree.Roots)
	}
	total := 0
	for _, root := range tree.Roots {
		total++
		total += len(root.Children)
	}
	if total != 2 {
		t.Fatalf("both features must stay visible, got %d nodes", total)
	}
}
