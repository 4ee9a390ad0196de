package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	loanDomain "polar-bridge-relayer/internal/domain/loan"
)

type CheckpointRepository struct{ db *gorm.DB }

func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

func (r *CheckpointRepository) Get(ctx context.Context, loanID uint64) (*loanDomain.AccrualCheckpoint, error) {
	var out loanDomain.AccrualCheckpoint
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrNotFound
	}
	return &out, res.Error
}

// Advance moves the checkpoint forward only; an older or equal date is a
// no-op. Callers hold the loan row lock, so read-then-write is race-free.
func (r *CheckpointRepository) Advance(ctx context.Context, loanID uint64, date time.Time) error {
	var cp loanDomain.AccrualCheckpoint
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&cp)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		cp = loanDomain.AccrualCheckpoint{LoanID: loanID, LastAccrualDate: date}
		return r.db.WithContext(ctx).Create(&cp).Error
	}
	if res.Error != nil {
		return res.Error
	}
	if !date.After(cp.LastAccrualDate) {
		return nil
	}
	return r.db.WithContext(ctx).Model(&loanDomain.AccrualCheckpoint{}).
		Where("loan_id = ?", loanID).
		Update("last_accrual_date", date).Error
}
