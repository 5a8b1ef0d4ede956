package access

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageRef is a page entry nested under a navigation node.
type PageRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Route string `json:"route"`
}

// NavNode is one feature in the navigation tree. Depth is recomputed
// from tree placement; the stored feature Level never drives structure.
type NavNode struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Route        string     `json:"route"`
	Icon         string     `json:"icon,omitempty"`
	DisplayOrder int        `json:"display_order"`
	Depth        int        `json:"depth"`
	Pages        []PageRef  `json:"pages,omitempty"`
	Children     []*NavNode `json:"children,omitempty"`
}

// NavigationTree is the ordered, hierarchical view of a user's access.
// Roots holds only main-menu features; the routable index additionally
// covers accessible features hidden from the menu.
type NavigationTree struct {
	Roots    []*NavNode `json:"roots"`
	routable map[int64]FeatureRecord
}

// Routable reports whether the feature is accessible for direct-route
// checks, main-menu or not, and returns its record.
func (t NavigationTree) Routable(featureID int64) (FeatureRecord, bool) {
	f, ok := t.routable[featureID]
	return f, ok
}

// RoutableFeatures returns all accessible features ordered by ID.
func (t NavigationTree) RoutableFeatures() []FeatureRecord {
	features := make([]FeatureRecord, 0, len(t.routable))
	for _, f := range t.routable {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].ID < features[j].ID })
	return features
}

// BuildView shapes a resolved access set into the navigation forest.
// Every accessible feature attaches under its nearest visible ancestor;
// inaccessible ancestors are skipped so descendants surface under the
// closest visible node or become roots. Siblings are ordered by display
// order, ties broken by name for determinism.
func BuildView(res Result, catalog []FeatureRecord, pages []PageRecord, mappings []PageFeatureMapping) NavigationTree {
	index := make(map[int64]FeatureRecord, len(catalog))
	for _, f := range catalog {
		index[f.ID] = f
	}

	member := func(id int64) bool {
		f, ok := index[id]
		return ok && f.Valid() && res.HasFeature(id)
	}
	inTree := func(id int64) bool {
		return member(id) && index[id].IsMainMenu
	}

	nodes := make(map[int64]*NavNode)
	routable := make(map[int64]FeatureRecord)
	for _, f := range catalog {
		if !member(f.ID) {
			continue
		}
		routable[f.ID] = f
		if f.IsMainMenu {
			nodes[f.ID] = &NavNode{
				ID:           f.ID,
				Name:         f.Name,
				Route:        f.Route,
				Icon:         f.Icon,
				DisplayOrder: f.DisplayOrder,
			}
		}
	}

	parentOf := make(map[int64]int64, len(nodes))
	for _, f := range catalog {
		if _, ok := nodes[f.ID]; !ok {
			continue
		}
		parentOf[f.ID] = nearestVisibleAncestor(f, index, inTree)
	}
	breakAssignmentCycles(parentOf)

	var roots []*NavNode
	for _, f := range catalog {
		node, ok := nodes[f.ID]
		if !ok {
			continue
		}
		parentID := parentOf[f.ID]
		if parentID == 0 {
			roots = append(roots, node)
			continue
		}
		parent := nodes[parentID]
		parent.Children = append(parent.Children, node)
	}

	pageIndex := make(map[int64]PageRecord, len(pages))
	for _, p := range pages {
		pageIndex[p.ID] = p
	}
	for _, m := range mappings {
		node, ok := nodes[m.FeatureID]
		if !ok {
			continue
		}
		page, ok := pageIndex[m.PageID]
		if !ok || !page.Valid() || !res.HasPage(page.ID) {
			continue
		}
		node.Pages = append(node.Pages, PageRef{ID: page.ID, Name: page.Name, Route: page.Route})
	}

	collator := collate.New(language.Und)
	orderSiblings(roots, collator)
	for _, root := range roots {
		orderSubtree(root, 0, collator)
	}

	return NavigationTree{Roots: roots, routable: routable}
}

// breakAssignmentCycles turns one member of every cycle in the computed
// parent assignment into a root, so corrupted parent chains yield a
// forest instead of a lost subgraph.
func breakAssignmentCycles(parentOf map[int64]int64) {
	ids := make([]int64, 0, len(parentOf))
	for id := range parentOf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		seen := map[int64]struct{}{id: {}}
		current := parentOf[id]
		for current != 0 {
			if _, dup := seen[current]; dup {
				if current == id {
					parentOf[id] = 0
				}
				break
			}
			seen[current] = struct{}{}
			current = parentOf[current]
		}
	}
}

// nearestVisibleAncestor walks the parent chain skipping nodes absent
// from the tree. A repeated ID means a corrupted chain; the feature then
// surfaces as a root rather than looping.
func nearestVisibleAncestor(f FeatureRecord, index map[int64]FeatureRecord, inTree func(int64) bool) int64 {
	seen := map[int64]struct{}{f.ID: {}}
	current := f.ParentID
	for current != 0 {
		if _, dup := seen[current]; dup {
			return 0
		}
		seen[current] = struct{}{}
		if inTree(current) {
			return current
		}
		record, ok := index[current]
		if !ok {
			return 0
		}
		current = record.ParentID
	}
	return 0
}

func orderSubtree(node *NavNode, depth int, collator *collate.Collator) {
	node.Depth = depth
	sort.SliceStable(node.Pages, func(i, j int) bool {
		return collator.CompareString(node.Pages[i].Name, node.Pages[j].Name) < 0
	})
	orderSiblings(node.Children, collator)
	for _, child := range node.Children {
		orderSubtree(child, depth+1, collator)
	}
}

func orderSiblings(nodes []*NavNode, collator *collate.Collator) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return collator.CompareString(nodes[i].Name, nodes[j].Name) < 0
	})
}
