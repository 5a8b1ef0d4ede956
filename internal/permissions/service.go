package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// Permission names are lowercase dotted paths, e.g. "roles.edit".
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, name, description string) (Permission, error)
	SoftDeletePermission(ctx context.Context, id int64) error
	ListGrants(ctx context.Context, roleID int64) ([]Grant, error)
	AttachRole(ctx context.Context, roleID, permissionID int64) (Grant, error)
	DetachRole(ctx context.Context, grantID int64) error
	LiveRoleExists(ctx context.Context, id int64) (bool, error)
}

// Invalidator bumps the access cache version after grant changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service owns permission catalog and grant rules.
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

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Permission{}, err
	}
	perm, err := s.repo.CreatePermission(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	return perm, nil
}

func (s *Service) UpdatePermission(ctx context.Context, id int64, name, description string) (Permission, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Permission{}, err
	}
	perm, err := s.repo.UpdatePermission(ctx, id, name, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	return perm, nil
}

func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeletePermission(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.repo.ListGrants(ctx, roleID)
}

// AttachRole grants a permission to a role after checking both ends.
func (s *Service) AttachRole(ctx context.Context, roleID, permissionID int64) (Grant, error) {
	ok, err := s.repo.LiveRoleExists(ctx, roleID)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return Grant{}, err
	}
	grant, err := s.repo.AttachRole(ctx, roleID, permissionID)
	if err != nil {
		return Grant{}, err
	}
	s.invalidate(ctx)
	return grant, nil
}

func (s *Service) DetachRole(ctx context.Context, grantID int64) error {
	if err := s.repo.DetachRole(ctx, grantID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: permission name must look like %q", httpx.ErrValidation, "resource.action")
	}
	return name, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump access cache", slog.Any("error", err))
	}
}
