package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/staffdesk/apiserver/internal/store"
	"github.com/staffdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakePrincipalRepo is an in-memory PrincipalRepository enforcing the
// same per-role login uniqueness as the real store.
type fakePrincipalRepo struct {
	byID   map[int]types.Principal
	nextID int
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{byID: make(map[int]types.Principal), nextID: 1}
}

func (f *fakePrincipalRepo) GetByID(ctx context.Context, id int) (types.Principal, error) {
	principal, ok := f.byID[id]
	if !ok {
		return types.Principal{}, store.ErrNotFound
	}
	return principal, nil
}

func (f *fakePrincipalRepo) GetByLogin(ctx context.Context, role types.Role, login string) (types.Principal, error) {
	for _, principal := range f.byID {
		if principal.Role == role && principal.Login == login {
			return principal, nil
		}
	}
	return types.Principal{}, store.ErrNotFound
}

func (f *fakePrincipalRepo) Create(ctx context.Context, principal types.Principal) (types.Principal, error) {
	if _, err := f.GetByLogin(ctx, principal.Role, principal.Login); err == nil {
		return types.Principal{}, store.ErrDuplicateLogin
	}
	principal.ID = f.nextID
	f.nextID++
	f.byID[principal.ID] = principal
	return principal, nil
}

func (f *fakePrincipalRepo) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	principal, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	principal.PasswordHash = passwordHash
	f.byID[id] = principal
	return nil
}

func TestRegisterThenVerify(t *testing.T) {
	service := NewPrincipalService(newFakePrincipalRepo())
	ctx := context.Background()

	principal, err := service.Register(ctx, types.RoleUser, "bob", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, principal.Role)
	assert.NotEqual(t, "Secret1!", principal.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte("Secret1!")))

	verified, err := service.VerifyCredentials(ctx, types.RoleUser, "bob", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, principal.ID, verified.ID)
}

func TestVerifyFailuresCollapse(t *testing.T) {
	service := NewPrincipalService(newFakePrincipalRepo())
	ctx := context.Background()

	_, err := service.Register(ctx, types.RoleUser, "bob", "Secret1!")
	require.NoError(t, err)

	_, wrongPassErr := service.VerifyCredentials(ctx, types.RoleUser, "bob", "nope")
	_, unknownErr := service.VerifyCredentials(ctx, types.RoleUser, "nobody", "Secret1!")
	assert.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
}

func TestRegisterDuplicatePerRole(t *testing.T) {
	service := NewPrincipalService(newFakePrincipalRepo())
	ctx := context.Background()

	_, err := service.Register(ctx, types.RoleUser, "shared", "Secret1!")
	require.NoError(t, err)

	_, err = service.Register(ctx, types.RoleUser, "shared", "Other2!")
	assert.ErrorIs(t, err, store.ErrDuplicateLogin)

	// The same login under the other role is a different principal.
	admin, err := service.Register(ctx, types.RoleAdmin, "shared", "Other2!")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	repo := newFakePrincipalRepo()
	service := NewPrincipalService(repo)
	ctx := context.Background()

	principal, err := service.Register(ctx, types.RoleUser, "bob", "Secret1!")
	require.NoError(t, err)
	originalHash := repo.byID[principal.ID].PasswordHash

	err = service.ChangePassword(ctx, principal.ID, "wrong", "NewPass1!")
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.Equal(t, originalHash, repo.byID[principal.ID].PasswordHash)

	err = service.ChangePassword(ctx, principal.ID, "Secret1!", "NewPass1!")
	require.NoError(t, err)
	assert.NotEqual(t, originalHash, repo.byID[principal.ID].PasswordHash)

	_, err = service.VerifyCredentials(ctx, types.RoleUser, "bob", "NewPass1!")
	assert.NoError(t, err)
	_, err = service.VerifyCredentials(ctx, types.RoleUser, "bob", "Secret1!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPasswordSkipsCurrent(t *testing.T) {
	service := NewPrincipalService(newFakePrincipalRepo())
	ctx := context.Background()

	principal, err := service.Register(ctx, types.RoleUser, "bob", "OldPass!")
	require.NoError(t, err)

	require.NoError(t, service.ResetPassword(ctx, principal.ID, "NewPass1!"))

	_, err = service.VerifyCredentials(ctx, types.RoleUser, "bob", "NewPass1!")
	assert.NoError(t, err)
	_, err = service.VerifyCredentials(ctx, types.RoleUser, "bob", "OldPass!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterManyDistinctIDs(t *testing.T) {
	service := NewPrincipalService(newFakePrincipalRepo())
	ctx := context.Background()

	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		principal, err := service.Register(ctx, types.RoleUser, fmt.Sprintf("user%d", i), "Secret1!")
		require.NoError(t, err)
		assert.False(t, seen[principal.ID])
		seen[principal.ID] = true
	}
}
