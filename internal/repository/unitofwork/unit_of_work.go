package unitofwork

import (
	"context"

	"concept-review-be/internal/repository/contract"
)

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	WorkItemRepository() contract.WorkItemRepository
	ConceptRepository() contract.ConceptRepository
	VoteRepository() contract.VoteRepository
	CompletionRecordRepository() contract.CompletionRecordRepository
}

// InTransaction runs fn inside a transaction, committing on nil and rolling back otherwise.
func InTransaction(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
