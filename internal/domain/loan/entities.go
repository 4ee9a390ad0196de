package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusOverdue    Status = "overdue"
	StatusRepaid     Status = "repaid"
	StatusLiquidated Status = "liquidated"
)

// Terminal reports whether a status permits no further transitions.
func (s Status) Terminal() bool { return s == StatusRepaid || s == StatusLiquidated }

// Loan is a collateralized position: collateral locked in the source-chain
// vault, borrowed asset released from the destination-chain pool. All money
// fields are fixed-point decimals in the smallest unit of their asset so
// repeated daily accrual never drifts.
type Loan struct {
	ID     uint64 `gorm:"primaryKey;column:id" json:"-"`
	LoanID string `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`

	Borrower    string `gorm:"size:64;index:idx_loans_borrower" json:"borrower"`
	LockEventID string `gorm:"size:96;uniqueIndex:ux_loans_lock_event" json:"lock_event_id"`

	CollateralAsset        string          `gorm:"size:16" json:"collateral_asset"`
	CollateralAmount       decimal.Decimal `gorm:"type:decimal(30,10)" json:"collateral_amount"`
	CollateralValueAtStart decimal.Decimal `gorm:"type:decimal(30,10)" json:"collateral_value_at_origination"`

	BorrowedAsset  string          `gorm:"size:16" json:"borrowed_asset"`
	BorrowedAmount decimal.Decimal `gorm:"type:decimal(30,10)" json:"borrowed_amount"`

	OriginationTime time.Time `json:"origination_time"`
	DurationDays    int       `json:"duration_days"`
	InterestRateAPY float64   `gorm:"type:decimal(6,4)" json:"interest_rate_apy"`
	Deadline        time.Time `json:"deadline"`

	Status          Status          `gorm:"size:16;index:idx_loans_status;default:'active'" json:"status"`
	AccruedInterest decimal.Decimal `gorm:"type:decimal(30,10)" json:"accrued_interest"`
	LateFee         decimal.Decimal `gorm:"type:decimal(30,10)" json:"late_fee"`
	HealthFactor    float64         `json:"health_factor"`
	ForceLiquidate  bool            `json:"force_liquidate"`

	RepaidAt     *time.Time `json:"repaid_at,omitempty"`
	LiquidatedAt *time.Time `json:"liquidated_at,omitempty"`

	// Version guards optimistic read-modify-write cycles; Save with a stale
	// version fails and the caller retries.
	Version   int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// TotalDebt is principal plus everything accrued, in borrowed-asset units.
func (l *Loan) TotalDebt() decimal.Decimal {
	return l.BorrowedAmount.Add(l.AccruedInterest).Add(l.LateFee)
}

// DebtAtDeadline is the deterministic debt a loan carries the day it comes
// due: principal plus simple interest over the full term. Late fees accrue
// against this base.
func (l *Loan) DebtAtDeadline() decimal.Decimal {
	apy := decimal.NewFromFloat(l.InterestRateAPY)
	term := decimal.NewFromInt(int64(l.DurationDays))
	interest := l.BorrowedAmount.Mul(apy).Mul(term).Div(decimal.NewFromInt(365))
	return l.BorrowedAmount.Add(interest)
}

// DaysLate counts whole days past the deadline at the given instant.
func (l *Loan) DaysLate(now time.Time) int {
	if !now.After(l.Deadline) {
		return 0
	}
	return int(now.Sub(l.Deadline).Hours() / 24)
}
