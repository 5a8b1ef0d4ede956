// Package access implements the hierarchical access-resolution engine:
// given a user it computes the effective set of pages, features and
// permissions reachable through the user's roles and the role hierarchy,
// and shapes that set into a navigation tree for the presentation layer.
package access

import (
	"encoding/json"
	"sort"
)

// Lifecycle marks whether an entity snapshot is live or soft deleted.
type Lifecycle int

const (
	// LifecycleActive marks a live record.
	LifecycleActive Lifecycle = iota
	// LifecycleSoftDeleted marks a record flagged as deleted but retained for audit.
	LifecycleSoftDeleted
)

// RoleMapping is one user-to-role assignment.
type RoleMapping struct {
	RoleID   int64
	IsActive bool
}

// HierarchyEdge is one parent-to-child edge in the role hierarchy graph.
type HierarchyEdge struct {
	ParentRoleID int64
	ChildRoleID  int64
}

// RoleFeatureMapping links a role to a feature it grants.
type RoleFeatureMapping struct {
	RoleID    int64
	FeatureID int64
	IsActive  bool
}

// FeatureRecord is a snapshot of one navigable feature node.
// ParentID zero means the feature is a tree root. Level is the stored
// depth and is advisory only: tree placement recomputes depth from the
// parent chain.
type FeatureRecord struct {
	ID           int64
	ParentID     int64
	Name         string
	Route        string
	Icon         string
	DisplayOrder int
	Level        int
	IsMainMenu   bool
	IsActive     bool
	Lifecycle    Lifecycle
}

// Valid reports whether the feature may appear in resolved access.
func (f FeatureRecord) Valid() bool {
	return f.IsActive && f.Lifecycle == LifecycleActive
}

// PageRecord is a snapshot of one routable page.
type PageRecord struct {
	ID        int64
	Name      string
	Route     string
	Lifecycle Lifecycle
}

// Valid reports whether the page may appear in resolved access.
func (p PageRecord) Valid() bool {
	return p.Lifecycle == LifecycleActive
}

// PageFeatureMapping attaches a page to a feature. The join carries no
// soft-delete flag: absence of a row is definitive.
type PageFeatureMapping struct {
	PageID    int64
	FeatureID int64
}

// PermissionRecord is a permission reachable from a role set.
type PermissionRecord struct {
	ID   int64
	Name string
}

// Result is the outcome of one access resolution call: the sets of page,
// feature and permission identifiers the user may reach. Permissions map
// the identifier to the permission name for presentation.
type Result struct {
	Pages       map[int64]struct{}
	Features    map[int64]struct{}
	Permissions map[int64]string
}

// NewResult returns an empty Result with initialised sets.
func NewResult() Result {
	return Result{
		Pages:       map[int64]struct{}{},
		Features:    map[int64]struct{}{},
		Permissions: map[int64]string{},
	}
}

// HasFeature reports whether the feature is in the resolved set.
func (r Result) HasFeature(id int64) bool {
	_, ok := r.Features[id]
	return ok
}

// HasPage reports whether the page is in the resolved set.
func (r Result) HasPage(id int64) bool {
	_, ok := r.Pages[id]
	return ok
}

// PermissionNames returns the resolved permission names sorted ascending.
func (r Result) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, name := range r.Permissions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type resultPayload struct {
	Pages       []int64            `json:"pages"`
	Features    []int64            `json:"features"`
	Permissions []PermissionRecord `json:"permissions"`
}

// MarshalJSON encodes the result with deterministically ordered sets.
func (r Result) MarshalJSON() ([]byte, error) {
	payload := resultPayload{
		Pages:    sortedKeys(r.Pages),
		Features: sortedKeys(r.Features),
	}
	payload.Permissions = make([]PermissionRecord, 0, len(r.Permissions))
	for id, name := range r.Permissions {
		payload.Permissions = append(payload.Permissions, PermissionRecord{ID: id, Name: name})
	}
	sort.Slice(payload.Permissions, func(i, j int) bool {
		return payload.Permissions[i].ID < payload.Permissions[j].ID
	})
	return json.Marshal(payload)
}

// UnmarshalJSON decodes a result previously produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var payload resultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*r = NewResult()
	for _, id := range payload.Pages {
		r.Pages[id] = struct{}{}
	}
	for _, id := range payload.Features {
		r.Features[id] = struct{}{}
	}
	for _, perm := range payload.Permissions {
		r.Permissions[perm.ID] = perm.Name
	}
	return nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(set))
	for id := range set {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Snapshot bundles the catalogs one resolution call operates on. It is
// fetched once per call and never mutated afterwards.
type Snapshot struct {
	Mappings     []RoleMapping
	LiveRoles    map[int64]struct{}
	Edges        []HierarchyEdge
	Features     []FeatureRecord
	Pages        []PageRecord
	PageFeatures []PageFeatureMapping
}

// FeatureIndex returns the catalog keyed by feature ID.
func (s Snapshot) FeatureIndex() map[int64]FeatureRecord {
	index := make(map[int64]FeatureRecord, len(s.Features))
	for _, f := range s.Features {
		index[f.ID] = f
	}
	return index
}

// PageIndex returns the page catalog keyed by page ID.
func (s Snapshot) PageIndex() map[int64]PageRecord {
	index := make(map[int64]PageRecord, len(s.Pages))
	for _, p := range s.Pages {
		index[p.ID] = p
	}
	return index
}
