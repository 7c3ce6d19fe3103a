package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/staffdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func principalColumns() []string {
	return []string{"id", "login", "role", "password_hash", "created_at", "updated_at"}
}

func TestGetByLogin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, login, role, password_hash, created_at, updated_at")).
		WithArgs("admin", "a1").
		WillReturnRows(sqlmock.NewRows(principalColumns()).
			AddRow(1, "a1", "admin", "$2a$10$hash", now, now))

	principal, err := repo.GetByLogin(context.Background(), types.RoleAdmin, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, principal.ID)
	assert.Equal(t, types.RoleAdmin, principal.Role)
	assert.Equal(t, "a1", principal.Login)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByLoginNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, login, role, password_hash, created_at, updated_at")).
		WithArgs("user", "nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByLogin(context.Background(), types.RoleUser, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO principals")).
		WithArgs("a1", "admin", "$2a$10$hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	created, err := repo.Create(context.Background(), types.Principal{
		Login:        "a1",
		Role:         types.RoleAdmin,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, created.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateLogin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO principals")).
		WithArgs("a1", "admin", "$2a$10$hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.Principal{
		Login:        "a1",
		Role:         types.RoleAdmin,
		PasswordHash: "$2a$10$hash",
	})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestUpdatePasswordHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE principals")).
		WithArgs("$2a$10$newhash", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePasswordHash(context.Background(), 1, "$2a$10$newhash")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordHashNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE principals")).
		WithArgs("$2a$10$newhash", sqlmock.AnyArg(), 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePasswordHash(context.Background(), 99, "$2a$10$newhash")
	assert.ErrorIs(t, err, ErrNotFound)
}
