package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LiquidationEvent is the audit record of a forced closure: the full debt
// breakdown, the penalty split, and what happened to the collateral.
type LiquidationEvent struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"` // uuid
	LoanID string `gorm:"size:32;index:idx_liq_events_loan" json:"loan_id"`

	Reason string `gorm:"size:32" json:"reason"` // "health_factor" or "deadline"

	TotalDebt    decimal.Decimal `gorm:"type:decimal(30,10)" json:"total_debt"`
	Penalty      decimal.Decimal `gorm:"type:decimal(30,10)" json:"penalty"`
	ProtocolCut  decimal.Decimal `gorm:"type:decimal(30,10)" json:"protocol_cut"`
	LiquidatorCut decimal.Decimal `gorm:"type:decimal(30,10)" json:"liquidator_cut"`

	CollateralSeized   decimal.Decimal `gorm:"type:decimal(30,10)" json:"collateral_seized"`
	CollateralReturned decimal.Decimal `gorm:"type:decimal(30,10)" json:"collateral_returned"`
	CollateralPrice    decimal.Decimal `gorm:"type:decimal(30,10)" json:"collateral_price"`
	HealthFactor       float64         `json:"health_factor"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LiquidationEvent) TableName() string { return "liquidation_events" }

type LiquidationEventRepository interface {
	Create(ctx context.Context, e *LiquidationEvent) error
	ListByLoanID(ctx context.Context, loanID string) ([]LiquidationEvent, error)
}
