package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
	"github.com/meridian-iam/meridian-iam/internal/shared"
)

// RepositoryPort abstracts persistence for the service layer.
type RepositoryPort interface {
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, email, fullName string, passwordHash []byte) (User, error)
	UpdateUser(ctx context.Context, id int64, email, fullName string, isActive bool) (User, error)
	SoftDeleteUser(ctx context.Context, id int64) error
	ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	AssignRole(ctx context.Context, userID, roleID, assignedBy int64) (RoleAssignment, error)
	SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) error
	RevokeRole(ctx context.Context, assignmentID int64) error
	LiveRoleExists(ctx context.Context, id int64) (bool, error)
}

// Invalidator bumps the access cache version after assignment changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service owns user accounts and their role assignments.
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

// ListUsers returns a page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	users, err := s.repo.ListUsers(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, pagination, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers an account, hashing the password with bcrypt.
func (s *Service) CreateUser(ctx context.Context, username, email, fullName, password string) (User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return User{}, fmt.Errorf("%w: username and email required", httpx.ErrValidation)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, username, email, strings.TrimSpace(fullName), hash)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, email, fullName string, isActive bool) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	user, err := s.repo.UpdateUser(ctx, id, email, strings.TrimSpace(fullName), isActive)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx)
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.SoftDeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListAssignments(ctx, userID)
}

// AssignRole grants a role to a user. The grantor is taken from the request
// session so the assignment carries a trail of who issued it.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) (RoleAssignment, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return RoleAssignment{}, err
	}
	ok, err := s.repo.LiveRoleExists(ctx, roleID)
	if err != nil {
		return RoleAssignment{}, err
	}
	if !ok {
		return RoleAssignment{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	assignedBy, _ := shared.CurrentUserID(ctx)
	assignment, err := s.repo.AssignRole(ctx, userID, roleID, assignedBy)
	if err != nil {
		return RoleAssignment{}, err
	}
	s.invalidate(ctx)
	return assignment, nil
}

// SetAssignmentActive suspends or restores an assignment.
func (s *Service) SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) error {
	if err := s.repo.SetAssignmentActive(ctx, assignmentID, active); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) RevokeRole(ctx context.Context, assignmentID int64) error {
	if err := s.repo.RevokeRole(ctx, assignmentID); err != nil {
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
