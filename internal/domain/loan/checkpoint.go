package loan

import (
	"context"
	"time"
)

// AccrualCheckpoint records the last calendar date interest was applied to a
// loan. One row per loan; the date only moves forward, which makes
// AccrueOneDay idempotent per (loan, date).
type AccrualCheckpoint struct {
	LoanID          uint64    `gorm:"primaryKey;column:loan_id" json:"loan_id"`
	LastAccrualDate time.Time `gorm:"type:date" json:"last_accrual_date"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccrualCheckpoint) TableName() string { return "accrual_checkpoints" }

type CheckpointRepository interface {
	// Get returns ErrNotFound for a loan that has never accrued.
	Get(ctx context.Context, loanID uint64) (*AccrualCheckpoint, error)
	// Advance moves the checkpoint forward; it must never move it back.
	Advance(ctx context.Context, loanID uint64, date time.Time) error
}
