package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/staffdesk/apiserver/types"
)

// ContractRepository handles persistence for contracts.
type ContractRepository struct {
	db *sql.DB
}

func NewContractRepository(db *sql.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) List(ctx context.Context, offset, limit int) ([]types.Contract, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM contracts`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, title, counterparty, amount, starts_on, ends_on, status, document_key, created_by, created_at, updated_at
		FROM contracts
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contracts := make([]types.Contract, 0, limit)
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		contracts = append(contracts, contract)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return contracts, total, nil
}

func (r *ContractRepository) Get(ctx context.Context, id int) (types.Contract, error) {
	const query = `
		SELECT id, title, counterparty, amount, starts_on, ends_on, status, document_key, created_by, created_at, updated_at
		FROM contracts
		WHERE id = $1`
	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Contract{}, ErrNotFound
		}
		return types.Contract{}, err
	}
	return contract, nil
}

func (r *ContractRepository) Create(ctx context.Context, contract types.Contract) (types.Contract, error) {
	now := time.Now()
	contract.CreatedAt = now
	contract.UpdatedAt = now

	const query = `
		INSERT INTO contracts (title, counterparty, amount, starts_on, ends_on, status, document_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		contract.Title,
		contract.Counterparty,
		contract.Amount,
		contract.StartsOn,
		nullTime(contract.EndsOn),
		contract.Status,
		contract.DocumentKey,
		contract.CreatedBy,
		contract.CreatedAt,
		contract.UpdatedAt,
	).Scan(&contract.ID); err != nil {
		return types.Contract{}, err
	}
	return contract, nil
}

func (r *ContractRepository) Update(ctx context.Context, contract types.Contract) (types.Contract, error) {
	contract.UpdatedAt = time.Now()

	const query = `
		UPDATE contracts
		SET title = $1,
			counterparty = $2,
			amount = $3,
			starts_on = $4,
			ends_on = $5,
			status = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		contract.Title,
		contract.Counterparty,
		contract.Amount,
		contract.StartsOn,
		nullTime(contract.EndsOn),
		contract.Status,
		contract.UpdatedAt,
		contract.ID,
	)
	if err != nil {
		return types.Contract{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Contract{}, err
	}
	if affected == 0 {
		return types.Contract{}, ErrNotFound
	}
	return contract, nil
}

// SetDocumentKey records the object-storage key of the uploaded document.
func (r *ContractRepository) SetDocumentKey(ctx context.Context, id int, key string) error {
	const query = `
		UPDATE contracts
		SET document_key = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
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

func (r *ContractRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM contracts WHERE id = $1`
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (types.Contract, error) {
	var contract types.Contract
	var endsOn sql.NullTime
	if err := row.Scan(
		&contract.ID,
		&contract.Title,
		&contract.Counterparty,
		&contract.Amount,
		&contract.StartsOn,
		&endsOn,
		&contract.Status,
		&contract.DocumentKey,
		&contract.CreatedBy,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	); err != nil {
		return types.Contract{}, err
	}
	if endsOn.Valid {
		contract.EndsOn = endsOn.Time
	}
	return contract, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
