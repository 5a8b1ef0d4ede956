package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	ListPages(ctx context.Context) ([]Page, error)
	GetPage(ctx context.Context, id int64) (Page, error)
	CreatePage(ctx context.Context, name, route string, isActive bool) (Page, error)
	UpdatePage(ctx context.Context, id int64, name, route string, isActive bool) (Page, error)
	SoftDeletePage(ctx context.Context, id int64) error
	ListMappings(ctx context.Context) ([]Mapping, error)
	AttachFeature(ctx context.Context, pageID, featureID int64) (Mapping, error)
	DetachFeature(ctx context.Context, mappingID int64) error
}

// FeatureChecker verifies a feature exists before a mapping is written.
type FeatureChecker interface {
	FeatureExists(ctx context.Context, id int64) (bool, error)
}

// Invalidator bumps the access cache version after catalog changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service owns page catalog and page-to-feature mapping rules.
type Service struct {
	repo     RepositoryPort
	features FeatureChecker
	cache    Invalidator
	logger   *slog.Logger
}

func NewService(repo RepositoryPort, features FeatureChecker, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, features: features, cache: cache, logger: logger}
}

func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	return s.repo.ListPages(ctx)
}

func (s *Service) GetPage(ctx context.Context, id int64) (Page, error) {
	return s.repo.GetPage(ctx, id)
}

func (s *Service) CreatePage(ctx context.Context, name, route string, isActive bool) (Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Page{}, fmt.Errorf("%w: page name required", httpx.ErrValidation)
	}
	page, err := s.repo.CreatePage(ctx, name, strings.TrimSpace(route), isActive)
	if err != nil {
		return Page{}, err
	}
	s.invalidate(ctx)
	return page, nil
}

func (s *Service) UpdatePage(ctx context.Context, id int64, name, route string, isActive bool) (Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Page{}, fmt.Errorf("%w: page name required", httpx.ErrValidation)
	}
	page, err := s.repo.UpdatePage(ctx, id, name, strings.TrimSpace(route), isActive)
	if err != nil {
		return Page{}, err
	}
	s.invalidate(ctx)
	return page, nil
}

func (s *Service) DeletePage(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeletePage(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ListMappings(ctx context.Context) ([]Mapping, error) {
	return s.repo.ListMappings(ctx)
}

// AttachFeature maps a page to a feature after checking both ends are live.
func (s *Service) AttachFeature(ctx context.Context, pageID, featureID int64) (Mapping, error) {
	if _, err := s.repo.GetPage(ctx, pageID); err != nil {
		return Mapping{}, err
	}
	ok, err := s.features.FeatureExists(ctx, featureID)
	if err != nil {
		return Mapping{}, err
	}
	if !ok {
		return Mapping{}, fmt.Errorf("%w: feature %d", httpx.ErrNotFound, featureID)
	}
	mapping, err := s.repo.AttachFeature(ctx, pageID, featureID)
	if err != nil {
		return Mapping{}, err
	}
	s.invalidate(ctx)
	return mapping, nil
}

func (s *Service) DetachFeature(ctx context.Context, mappingID int64) error {
	if err := s.repo.DetachFeature(ctx, mappingID); err != nil {
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
