package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate takes a row lock; only valid inside a UoW tx.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	GetByLockEventID(ctx context.Context, eventID string) (*Loan, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]Loan, error)
	ListByBorrower(ctx context.Context, borrower string) ([]Loan, error)
	// Save persists the loan iff its version is unchanged, then bumps it.
	// Returns ErrStaleVersion on a lost race.
	Save(ctx context.Context, l *Loan) error
}
