package mysql

import (
	"context"

	"gorm.io/gorm"

	loanDomain "polar-bridge-relayer/internal/domain/loan"
)

type LiquidationEventRepository struct{ db *gorm.DB }

func NewLiquidationEventRepository(db *gorm.DB) *LiquidationEventRepository {
	return &LiquidationEventRepository{db: db}
}

func (r *LiquidationEventRepository) Create(ctx context.Context, e *loanDomain.LiquidationEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *LiquidationEventRepository) ListByLoanID(ctx context.Context, loanID string) ([]loanDomain.LiquidationEvent, error) {
	var out []loanDomain.LiquidationEvent
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC").
		Find(&out)
	return out, res.Error
}
