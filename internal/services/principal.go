package services

import (
	"context"
	"errors"

	"github.com/staffdesk/apiserver/internal/store"
	"github.com/staffdesk/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a login attempt fails. Unknown
// login and wrong password both collapse into it, so callers cannot
// probe which logins exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrWrongPassword is returned when a password change is attempted with
// an incorrect current password.
var ErrWrongPassword = errors.New("wrong current password")

// PrincipalRepository defines persistence operations for principals.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id int) (types.Principal, error)
	GetByLogin(ctx context.Context, role types.Role, login string) (types.Principal, error)
	Create(ctx context.Context, principal types.Principal) (types.Principal, error)
	UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error
}

// PrincipalService owns credential handling: it hashes and verifies
// passwords and never lets a raw password reach the repository.
type PrincipalService struct {
	repo PrincipalRepository
}

func NewPrincipalService(repo PrincipalRepository) *PrincipalService {
	return &PrincipalService{repo: repo}
}

func (s *PrincipalService) GetByID(ctx context.Context, id int) (types.Principal, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PrincipalService) GetByLogin(ctx context.Context, role types.Role, login string) (types.Principal, error) {
	return s.repo.GetByLogin(ctx, role, login)
}

// Register creates a principal with a bcrypt hash of the password. The
// existence pre-check is a fast path only; the repository's unique
// constraint is the authoritative guard against concurrent duplicates.
func (s *PrincipalService) Register(ctx context.Context, role types.Role, login, password string) (types.Principal, error) {
	if _, err := s.repo.GetByLogin(ctx, role, login); err == nil {
		return types.Principal{}, store.ErrDuplicateLogin
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Principal{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.Principal{}, err
	}

	return s.repo.Create(ctx, types.Principal{
		Login:        login,
		Role:         role,
		PasswordHash: string(hashed),
	})
}

// VerifyCredentials checks a login/password pair. A missing login and a
// failed hash comparison are internally distinct but both surface as
// ErrInvalidCredentials.
func (s *PrincipalService) VerifyCredentials(ctx context.Context, role types.Role, login, password string) (types.Principal, error) {
	principal, err := s.repo.GetByLogin(ctx, role, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Principal{}, ErrInvalidCredentials
		}
		return types.Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return types.Principal{}, ErrInvalidCredentials
	}
	return principal, nil
}

// ChangePassword rotates the hash after proving the current password.
// The stored hash is untouched when the proof fails.
func (s *PrincipalService) ChangePassword(ctx context.Context, id int, currentPassword, newPassword string) error {
	principal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, id, string(hashed))
}

// ResetPassword rotates the hash without the current password. Only the
// reset-token consumption path may call it.
func (s *PrincipalService) ResetPassword(ctx context.Context, id int, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, id, string(hashed))
}
