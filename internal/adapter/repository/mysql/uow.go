package mysql

import (
	"context"

	"gorm.io/gorm"

	"polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/uow"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func reposFor(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:             &LoanRepository{db: tx},
		Checkpoints:       &CheckpointRepository{db: tx},
		LiquidationEvents: &LiquidationEventRepository{db: tx},
		Settlements:       &SettlementRepository{db: tx},
		Cursors:           &CursorRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// lock the loan row up-front so accrual, repayment and liquidation
		// serialize per loan
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}
