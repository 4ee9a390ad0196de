package loanmock

import (
	"context"
	"time"

	domain "polar-bridge-relayer/internal/domain/loan"
)

// Ensure compile-time compliance
var (
	_ domain.Repository           = (*Repo)(nil)
	_ domain.CheckpointRepository = (*Checkpoints)(nil)
)

// Repo is a function-backed mock that satisfies domain.Repository.
// Only methods you need are included; add more as tests require.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLockEventIDFn     func(ctx context.Context, eventID string) (*domain.Loan, error)
	ListByStatusFn         func(ctx context.Context, statuses ...domain.Status) ([]domain.Loan, error)
	ListByBorrowerFn       func(ctx context.Context, borrower string) ([]domain.Loan, error)
	SaveFn                 func(ctx context.Context, l *domain.Loan) error
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, domain.ErrNotFound
}
func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, domain.ErrNotFound
}
func (m *Repo) GetByLockEventID(ctx context.Context, eventID string) (*domain.Loan, error) {
	if m.GetByLockEventIDFn != nil {
		return m.GetByLockEventIDFn(ctx, eventID)
	}
	return nil, domain.ErrNotFound
}
func (m *Repo) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Loan, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, statuses...)
	}
	return nil, nil
}
func (m *Repo) ListByBorrower(ctx context.Context, borrower string) ([]domain.Loan, error) {
	if m.ListByBorrowerFn != nil {
		return m.ListByBorrowerFn(ctx, borrower)
	}
	return nil, nil
}
func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

// Checkpoints is a function-backed mock for domain.CheckpointRepository.
type Checkpoints struct {
	GetFn     func(ctx context.Context, loanID uint64) (*domain.AccrualCheckpoint, error)
	AdvanceFn func(ctx context.Context, loanID uint64, date time.Time) error
}

func (m *Checkpoints) Get(ctx context.Context, loanID uint64) (*domain.AccrualCheckpoint, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, loanID)
	}
	return nil, domain.ErrNotFound
}
func (m *Checkpoints) Advance(ctx context.Context, loanID uint64, date time.Time) error {
	if m.AdvanceFn != nil {
		return m.AdvanceFn(ctx, loanID, date)
	}
	return nil
}
