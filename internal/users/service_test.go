package users

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
	"github.com/meridian-iam/meridian-iam/internal/shared"
)

type stubRepo struct {
	users          map[int64]User
	roles          map[int64]struct{}
	assignments    map[int64]RoleAssignment
	nextAssignment int64
	hashes         map[string][]byte
	bumpsSeen      *int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:          map[int64]User{},
		roles:          map[int64]struct{}{},
		assignments:    map[int64]RoleAssignment{},
		nextAssignment: 1,
		hashes:         map[string][]byte{},
	}
}

func (s *stubRepo) CountUsers(ctx context.Context) (int, error) { return len(s.users), nil }

func (s *stubRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var out []User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, username, email, fullName string, passwordHash []byte) (User, error) {
	u := User{ID: int64(len(s.users) + 1), Username: username, Email: email, FullName: fullName, IsActive: true}
	s.users[u.ID] = u
	s.hashes[username] = passwordHash
	return u, nil
}

func (s *stubRepo) UpdateUser(ctx context.Context, id int64, email, fullName string, isActive bool) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	u.Email, u.FullName, u.IsActive = email, fullName, isActive
	s.users[id] = u
	return u, nil
}

func (s *stubRepo) SoftDeleteUser(ctx context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *stubRepo) ListAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	var out []RoleAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubRepo) AssignRole(ctx context.Context, userID, roleID, assignedBy int64) (RoleAssignment, error) {
	a := RoleAssignment{ID: s.nextAssignment, UserID: userID, RoleID: roleID, AssignedBy: assignedBy, IsActive: true}
	s.nextAssignment++
	s.assignments[a.ID] = a
	return a, nil
}

func (s *stubRepo) SetAssignmentActive(ctx context.Context, assignmentID int64, active bool) error {
	a, ok := s.assignments[assignmentID]
	if !ok {
		return httpx.ErrNotFound
	}
	a.IsActive = active
	s.assignments[assignmentID] = a
	return nil
}

func (s *stubRepo) RevokeRole(ctx context.Context, assignmentID int64) error {
	if _, ok := s.assignments[assignmentID]; !ok {
		return httpx.ErrNotFound
	}
	delete(s.assignments, assignmentID)
	return nil
}

func (s *stubRepo) LiveRoleExists(ctx context.Context, id int64) (bool, error) {
	_, ok := s.roles[id]
	return ok, nil
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, nil, slog.New(slog.DiscardHandler))
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	user, err := svc.CreateUser(context.Background(), " Ada ", "ADA@Example.COM", "Ada L", "supersecret")
	require.NoError(t, err)
	require.Equal(t, "ada", user.Username)
	require.Equal(t, "ada@example.com", user.Email)

	hash := repo.hashes["ada"]
	require.NotEmpty(t, hash)
	require.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("supersecret")))
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	svc := newTestService(newStubRepo())

	_, err := svc.CreateUser(context.Background(), "ada", "ada@example.com", "", "short")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAssignRoleRecordsGrantor(t *testing.T) {
	repo := newStubRepo()
	repo.users[7] = User{ID: 7, Username: "ada"}
	repo.roles[3] = struct{}{}
	svc := newTestService(repo)

	sess := &shared.Session{}
	sess.SetUserID(42)
	ctx := shared.ContextWithSession(context.Background(), sess)

	assignment, err := svc.AssignRole(ctx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, int64(42), assignment.AssignedBy)
	require.True(t, assignment.IsActive)
}

func TestAssignRoleRejectsMissingRole(t *testing.T) {
	repo := newStubRepo()
	repo.users[7] = User{ID: 7}
	svc := newTestService(repo)

	_, err := svc.AssignRole(context.Background(), 7, 99)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
