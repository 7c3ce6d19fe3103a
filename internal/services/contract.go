package services

import (
	"context"

	"github.com/staffdesk/apiserver/types"
)

// ContractRepository defines persistence operations for contracts.
type ContractRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Contract, int, error)
	Get(ctx context.Context, id int) (types.Contract, error)
	Create(ctx context.Context, contract types.Contract) (types.Contract, error)
	Update(ctx context.Context, contract types.Contract) (types.Contract, error)
	SetDocumentKey(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// ContractService encapsulates contract use-cases.
type ContractService struct {
	repo ContractRepository
}

func NewContractService(repo ContractRepository) *ContractService {
	return &ContractService{repo: repo}
}

func (s *ContractService) List(ctx context.Context, offset, limit int) ([]types.Contract, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *ContractService) Get(ctx context.Context, id int) (types.Contract, error) {
	return s.repo.Get(ctx, id)
}

func (s *ContractService) Create(ctx context.Context, contract types.Contract) (types.Contract, error) {
	return s.repo.Create(ctx, contract)
}

func (s *ContractService) Update(ctx context.Context, contract types.Contract) (types.Contract, error) {
	return s.repo.Update(ctx, contract)
}

func (s *ContractService) SetDocumentKey(ctx context.Context, id int, key string) error {
	return s.repo.SetDocumentKey(ctx, id, key)
}

func (s *ContractService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
