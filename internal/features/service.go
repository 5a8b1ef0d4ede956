package features

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	ListFeatures(ctx context.Context) ([]Feature, error)
	GetFeature(ctx context.Context, id int64) (Feature, error)
	CreateFeature(ctx context.Context, f Feature) (Feature, error)
	UpdateFeature(ctx context.Context, f Feature) (Feature, error)
	SoftDeleteFeature(ctx context.Context, id int64) error
	ReparentFeature(ctx context.Context, id, newParentID int64, newLevel int) error
	ListGrants(ctx context.Context, roleID int64) ([]Grant, error)
	AttachRole(ctx context.Context, roleID, featureID int64) (Grant, error)
	SetGrantActive(ctx context.Context, grantID int64, active bool) error
	DetachRole(ctx context.Context, grantID int64) error
	LiveRoleExists(ctx context.Context, id int64) (bool, error)
}

// Invalidator bumps the access cache version after catalog changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service owns feature tree rules: parent liveness, stored levels,
// reparent safety and role grants.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) ListFeatures(ctx context.Context) ([]Feature, error) {
	return s.repo.ListFeatures(ctx)
}

func (s *Service) GetFeature(ctx context.Context, id int64) (Feature, error) {
	return s.repo.GetFeature(ctx, id)
}

// CreateFeature inserts a feature under the requested parent. The stored
// level is derived from the parent, never taken from the caller.
func (s *Service) CreateFeature(ctx context.Context, f Feature) (Feature, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return Feature{}, fmt.Errorf("%w: feature name required", httpx.ErrValidation)
	}
	f.Level = 0
	if f.ParentID != 0 {
		parent, err := s.repo.GetFeature(ctx, f.ParentID)
		if err != nil {
			return Feature{}, fmt.Errorf("parent feature: %w", err)
		}
		f.Level = parent.Level + 1
	}
	created, err := s.repo.CreateFeature(ctx, f)
	if err != nil {
		return Feature{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) UpdateFeature(ctx context.Context, f Feature) (Feature, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return Feature{}, fmt.Errorf("%w: feature name required", httpx.ErrValidation)
	}
	updated, err := s.repo.UpdateFeature(ctx, f)
	if err != nil {
		return Feature{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) DeleteFeature(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeleteFeature(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ReparentFeature moves a feature under newParentID (0 for root). The move
// is rejected when it would place the feature under itself or one of its
// own descendants.
func (s *Service) ReparentFeature(ctx context.Context, id, newParentID int64) error {
	if id == newParentID {
		return fmt.Errorf("%w: feature cannot be its own parent", httpx.ErrConflict)
	}
	if _, err := s.repo.GetFeature(ctx, id); err != nil {
		return err
	}
	newLevel := 0
	if newParentID != 0 {
		parent, err := s.repo.GetFeature(ctx, newParentID)
		if err != nil {
			return fmt.Errorf("parent feature: %w", err)
		}
		under, err := s.isDescendant(ctx, newParentID, id)
		if err != nil {
			return err
		}
		if under {
			return fmt.Errorf("%w: feature %d cannot move under its own descendant %d",
				httpx.ErrConflict, id, newParentID)
		}
		newLevel = parent.Level + 1
	}
	if err := s.repo.ReparentFeature(ctx, id, newParentID, newLevel); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// isDescendant reports whether candidate sits in the subtree rooted at
// ancestorID, walking the stored parent pointers.
func (s *Service) isDescendant(ctx context.Context, candidate, ancestorID int64) (bool, error) {
	all, err := s.repo.ListFeatures(ctx)
	if err != nil {
		return false, err
	}
	parents := make(map[int64]int64, len(all))
	for _, f := range all {
		parents[f.ID] = f.ParentID
	}
	seen := map[int64]struct{}{}
	for cur := candidate; cur != 0; cur = parents[cur] {
		if cur == ancestorID {
			return true, nil
		}
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
	}
	return false, nil
}

func (s *Service) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.repo.ListGrants(ctx, roleID)
}

// AttachRole grants a feature to a role after checking both ends. Without a
// grant the feature never shows up in a user's resolved access, no matter
// what roles the user holds.
func (s *Service) AttachRole(ctx context.Context, roleID, featureID int64) (Grant, error) {
	ok, err := s.repo.LiveRoleExists(ctx, roleID)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	if _, err := s.repo.GetFeature(ctx, featureID); err != nil {
		return Grant{}, err
	}
	grant, err := s.repo.AttachRole(ctx, roleID, featureID)
	if err != nil {
		return Grant{}, err
	}
	s.invalidate(ctx)
	return grant, nil
}

// SetGrantActive suspends or resumes a grant. A suspended grant is skipped
// during access resolution but keeps its row.
func (s *Service) SetGrantActive(ctx context.Context, grantID int64, active bool) error {
	if err := s.repo.SetGrantActive(ctx, grantID, active); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DetachRole(ctx context.Context, grantID int64) error {
	if err := s.repo.DetachRole(ctx, grantID); err != nil {
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
