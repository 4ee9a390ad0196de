package uow

import (
	"context"

	"polar-bridge-relayer/internal/domain/chain"
	"polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/settlement"
)

// Repos bundles every repository bound to one transaction.
type Repos struct {
	Loans             loan.Repository
	Checkpoints       loan.CheckpointRepository
	LiquidationEvents loan.LiquidationEventRepository
	Settlements       settlement.Repository
	Cursors           chain.CursorRepository
}

type UnitOfWork interface {
	// WithinTx runs fn inside one store transaction.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinLoanTx locks the loan row first, then passes it in. Multi-field
	// loan transitions go through here so accrual, repayment and
	// liquidation serialize per loan.
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
