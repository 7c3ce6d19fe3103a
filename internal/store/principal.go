package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/staffdesk/apiserver/types"
)

const uniqueViolationCode = "23505"

// PrincipalRepository handles persistence for principals.
type PrincipalRepository struct {
	db *sql.DB
}

func NewPrincipalRepository(db *sql.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id int) (types.Principal, error) {
	const query = `
		SELECT id, login, role, password_hash, created_at, updated_at
		FROM principals
		WHERE id = $1`
	var principal types.Principal
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&principal.ID,
		&principal.Login,
		&principal.Role,
		&principal.PasswordHash,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Principal{}, ErrNotFound
		}
		return types.Principal{}, err
	}
	return principal, nil
}

func (r *PrincipalRepository) GetByLogin(ctx context.Context, role types.Role, login string) (types.Principal, error) {
	const query = `
		SELECT id, login, role, password_hash, created_at, updated_at
		FROM principals
		WHERE role = $1 AND login = $2`
	var principal types.Principal
	err := r.db.QueryRowContext(ctx, query, role, login).Scan(
		&principal.ID,
		&principal.Login,
		&principal.Role,
		&principal.PasswordHash,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Principal{}, ErrNotFound
		}
		return types.Principal{}, err
	}
	return principal, nil
}

// Create inserts a new principal. The (role, login) unique constraint is
// the authoritative duplicate guard: a violation maps to ErrDuplicateLogin
// even when two concurrent registrations both passed an existence pre-check.
func (r *PrincipalRepository) Create(ctx context.Context, principal types.Principal) (types.Principal, error) {
	now := time.Now()
	principal.CreatedAt = now
	principal.UpdatedAt = now

	const query = `
		INSERT INTO principals (login, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		principal.Login,
		principal.Role,
		principal.PasswordHash,
		principal.CreatedAt,
		principal.UpdatedAt,
	).Scan(&principal.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return types.Principal{}, ErrDuplicateLogin
		}
		return types.Principal{}, err
	}
	return principal, nil
}

// UpdatePasswordHash rotates the stored hash for a principal.
func (r *PrincipalRepository) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE principals
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM principals WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
