package access

import "context"

// Store abstracts the persistence queries the resolution engine needs.
// Implementations must exclude soft-deleted rows except where the record
// carries its own Lifecycle field, which the engine filters itself.
type Store interface {
	// ActiveRoleMappings returns the role assignments for one user,
	// including the per-assignment active flag.
	ActiveRoleMappings(ctx context.Context, userID int64) ([]RoleMapping, error)
	// LiveRoleIDs returns the identifiers of all non-deleted roles.
	LiveRoleIDs(ctx context.Context) (map[int64]struct{}, error)
	// HierarchyEdges returns the full role hierarchy edge set.
	HierarchyEdges(ctx context.Context) ([]HierarchyEdge, error)
	// FeatureCatalog returns every feature with its deletion state
	// surfaced rather than pre-filtered.
	FeatureCatalog(ctx context.Context) ([]FeatureRecord, error)
	// PageCatalog returns every page with its deletion state surfaced.
	PageCatalog(ctx context.Context) ([]PageRecord, error)
	// PageFeatureMappings returns all page-to-feature joins.
	PageFeatureMappings(ctx context.Context) ([]PageFeatureMapping, error)
	// RoleFeatureMappings returns the feature grants for the given roles.
	RoleFeatureMappings(ctx context.Context, roleIDs []int64) ([]RoleFeatureMapping, error)
	// PermissionAssociations returns the live permissions reachable from
	// the given roles.
	PermissionAssociations(ctx context.Context, roleIDs []int64) ([]PermissionRecord, error)
}
