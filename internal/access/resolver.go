package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// CorruptionPolicy controls how a resolution call reacts when the stored
// hierarchy turns out to contain a cycle.
type CorruptionPolicy int

const (
	// PolicyDegrade logs the corruption and serves partial results.
	PolicyDegrade CorruptionPolicy = iota
	// PolicyFail refuses to serve any results from a corrupted graph.
	PolicyFail
)

// ParseCorruptionPolicy maps a configuration string onto a policy.
func ParseCorruptionPolicy(s string) (CorruptionPolicy, error) {
	switch s {
	case "", "degrade":
		return PolicyDegrade, nil
	case "fail":
		return PolicyFail, nil
	default:
		return PolicyDegrade, fmt.Errorf("access: unknown corruption policy %q", s)
	}
}

// Recorder receives resolution telemetry. Implementations must tolerate
// concurrent calls.
type Recorder interface {
	ResolutionObserved(d time.Duration, err error)
	CorruptionDetected()
}

// Resolver computes effective user access from store snapshots. It keeps
// no state between calls: every resolution is a pure function of the
// store content at call time.
type Resolver struct {
	store     Store
	direction Direction
	policy    CorruptionPolicy
	logger    *slog.Logger
	recorder  Recorder
}

// Options configures a Resolver.
type Options struct {
	Direction Direction
	Policy    CorruptionPolicy
	Logger    *slog.Logger
	Recorder  Recorder
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store Store, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     store,
		direction: opts.Direction,
		policy:    opts.Policy,
		logger:    logger,
		recorder:  opts.Recorder,
	}
}

// ResolveUserAccess computes the pages, features and permissions the user
// may reach. An unknown user or a user without active roles yields an
// empty result, not an error.
func (r *Resolver) ResolveUserAccess(ctx context.Context, userID int64) (Result, error) {
	start := time.Now()
	snap, err := r.fetchSnapshot(ctx, userID)
	if err != nil {
		r.observe(start, err)
		return Result{}, err
	}
	result, err := r.resolve(ctx, snap)
	r.observe(start, err)
	return result, err
}

// ResolveNavigation resolves the user's access and shapes it into the
// navigation tree, both against a single snapshot.
func (r *Resolver) ResolveNavigation(ctx context.Context, userID int64) (NavigationTree, error) {
	start := time.Now()
	snap, err := r.fetchSnapshot(ctx, userID)
	if err != nil {
		r.observe(start, err)
		return NavigationTree{}, err
	}
	result, err := r.resolve(ctx, snap)
	r.observe(start, err)
	if err != nil {
		return NavigationTree{}, err
	}
	return BuildView(result, snap.Features, snap.Pages, snap.PageFeatures), nil
}

// fetchSnapshot issues the independent catalog queries in parallel. The
// call is cancellable at every fetch boundary.
func (r *Resolver) fetchSnapshot(ctx context.Context, userID int64) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Mappings, err = r.store.ActiveRoleMappings(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.LiveRoles, err = r.store.LiveRoleIDs(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Edges, err = r.store.HierarchyEdges(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Features, err = r.store.FeatureCatalog(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Pages, err = r.store.PageCatalog(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.PageFeatures, err = r.store.PageFeatureMappings(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("access: fetch snapshot: %w", err)
	}
	return snap, nil
}

func (r *Resolver) resolve(ctx context.Context, snap Snapshot) (Result, error) {
	result := NewResult()

	roleSet, corrupted := r.applicableRoles(snap)
	if corrupted {
		if r.recorder != nil {
			r.recorder.CorruptionDetected()
		}
		r.logger.Warn("cycle detected in stored role hierarchy")
		if r.policy == PolicyFail {
			return NewResult(), ErrHierarchyCorrupted
		}
	}
	if len(roleSet) == 0 {
		return result, nil
	}

	roleIDs := sortedKeys(roleSet)

	var (
		roleFeatures []RoleFeatureMapping
		permissions  []PermissionRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roleFeatures, err = r.store.RoleFeatureMappings(gctx, roleIDs)
		return err
	})
	g.Go(func() (err error) {
		permissions, err = r.store.PermissionAssociations(gctx, roleIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("access: fetch grants: %w", err)
	}

	featureIndex := snap.FeatureIndex()
	for _, rf := range roleFeatures {
		if !rf.IsActive {
			continue
		}
		feature, ok := featureIndex[rf.FeatureID]
		if !ok {
			r.logger.Warn("skipping dangling role-feature mapping",
				slog.Int64("role_id", rf.RoleID), slog.Int64("feature_id", rf.FeatureID))
			continue
		}
		if !feature.Valid() {
			continue
		}
		result.Features[feature.ID] = struct{}{}
	}

	pageIndex := snap.PageIndex()
	for _, pf := range snap.PageFeatures {
		if !result.HasFeature(pf.FeatureID) {
			continue
		}
		page, ok := pageIndex[pf.PageID]
		if !ok {
			r.logger.Warn("skipping dangling page-feature mapping",
				slog.Int64("page_id", pf.PageID), slog.Int64("feature_id", pf.FeatureID))
			continue
		}
		if !page.Valid() {
			continue
		}
		result.Pages[page.ID] = struct{}{}
	}

	for _, perm := range permissions {
		result.Permissions[perm.ID] = perm.Name
	}
	return result, nil
}

// applicableRoles computes the de-duplicated role set reachable from the
// user's active, non-deleted assignments through the hierarchy. Each
// direct role is expanded at most once per call.
func (r *Resolver) applicableRoles(snap Snapshot) (map[int64]struct{}, bool) {
	hierarchy := NewHierarchy(snap.Edges)
	roleSet := map[int64]struct{}{}
	expanded := map[int64]struct{}{}
	corrupted := false

	for _, mapping := range snap.Mappings {
		if !mapping.IsActive {
			continue
		}
		if _, live := snap.LiveRoles[mapping.RoleID]; !live {
			continue
		}
		if _, done := expanded[mapping.RoleID]; done {
			continue
		}
		expanded[mapping.RoleID] = struct{}{}
		roleSet[mapping.RoleID] = struct{}{}

		inherited, err := hierarchy.Expand(r.direction, mapping.RoleID)
		if errors.Is(err, ErrHierarchyCorrupted) {
			corrupted = true
		}
		for roleID := range inherited {
			// Soft-deleted roles contribute nothing even when reachable.
			if _, live := snap.LiveRoles[roleID]; live {
				roleSet[roleID] = struct{}{}
			}
		}
	}
	return roleSet, corrupted
}

func (r *Resolver) observe(start time.Time, err error) {
	if r.recorder != nil {
		r.recorder.ResolutionObserved(time.Since(start), err)
	}
}
