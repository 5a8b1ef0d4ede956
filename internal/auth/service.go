package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-iam/meridian-iam/internal/shared"
)

// RepositoryPort abstracts credential storage.
type RepositoryPort interface {
	CredentialByUsername(ctx context.Context, username string) (Credential, error)
	TouchLastLogin(ctx context.Context, userID int64) error
}

// Service verifies credentials.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// dummyHash keeps the bcrypt cost on the failure path so a missing account
// is indistinguishable by timing from a wrong password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Authenticate checks a username/password pair and returns the identity on
// success. Failures collapse into shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	cred, err := s.repo.CredentialByUsername(ctx, username)
	if errors.Is(err, shared.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Identity{}, shared.ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	if !cred.IsActive {
		return Identity{}, shared.ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, cred.UserID); err != nil {
		s.logger.Warn("touch last login", slog.Int64("user_id", cred.UserID), slog.Any("error", err))
	}
	return Identity{UserID: cred.UserID, Username: cred.Username}, nil
}
