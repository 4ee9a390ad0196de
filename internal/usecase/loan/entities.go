package loan

import (
	"time"

	"github.com/shopspring/decimal"

	domain "polar-bridge-relayer/internal/domain/loan"
)

type OriginateInput struct {
	Borrower         string          `json:"borrower"`
	LockEventID      string          `json:"lock_event_id"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	// BorrowedAmount zero means borrow the tier maximum against the lock.
	BorrowedAmount decimal.Decimal `json:"borrowed_amount"`
	DurationDays   int             `json:"duration_days"`
}

type LoanDTO struct {
	LoanID           string          `json:"loan_id"`
	Borrower         string          `json:"borrower"`
	LockEventID      string          `json:"lock_event_id"`
	CollateralAsset  string          `json:"collateral_asset"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	BorrowedAsset    string          `json:"borrowed_asset"`
	BorrowedAmount   decimal.Decimal `json:"borrowed_amount"`
	AccruedInterest  decimal.Decimal `json:"accrued_interest"`
	LateFee          decimal.Decimal `json:"late_fee"`
	TotalDebt        decimal.Decimal `json:"total_debt"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	InterestRateAPY  float64         `json:"interest_rate_apy"`
	DurationDays     int             `json:"duration_days"`
	Deadline         time.Time       `json:"deadline"`
	DaysLate         int             `json:"days_late"`
	Status           string          `json:"status"`
	HealthFactor     float64         `json:"health_factor"`
	HealthLabel      string          `json:"health_label"`
	ForceLiquidate   bool            `json:"force_liquidate"`
	OriginatedAt     time.Time       `json:"originated_at"`
}

type RepayDTO struct {
	LoanID             string          `json:"loan_id"`
	Principal          decimal.Decimal `json:"principal"`
	Interest           decimal.Decimal `json:"interest"`
	LateFee            decimal.Decimal `json:"late_fee"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	CollateralReleased decimal.Decimal `json:"collateral_released"`
}

type LiquidationDTO struct {
	LoanID             string          `json:"loan_id"`
	EventID            string          `json:"event_id"`
	Reason             string          `json:"reason"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	Penalty            decimal.Decimal `json:"penalty"`
	ProtocolCut        decimal.Decimal `json:"protocol_cut"`
	LiquidatorCut      decimal.Decimal `json:"liquidator_cut"`
	CollateralSeized   decimal.Decimal `json:"collateral_seized"`
	CollateralReturned decimal.Decimal `json:"collateral_returned"`
	Shortfall          decimal.Decimal `json:"shortfall"`
}

type SummaryDTO struct {
	Borrower         string          `json:"borrower"`
	TotalLoans       int             `json:"total_loans"`
	OpenLoans        int             `json:"open_loans"`
	OutstandingDebt  decimal.Decimal `json:"outstanding_debt"`
	CollateralLocked decimal.Decimal `json:"collateral_locked"`
}

type PreviewInput struct {
	BorrowAmount decimal.Decimal `json:"borrow_amount"`
	// Ltv is a fraction in (0, tier max]; zero means tier max.
	Ltv          float64 `json:"ltv"`
	DurationDays int     `json:"duration_days"`
}

type PreviewDTO struct {
	CollateralNeeded decimal.Decimal `json:"collateral_needed"`
	CollateralValue  decimal.Decimal `json:"collateral_value"`
	BorrowAmount     decimal.Decimal `json:"borrow_amount"`
	DurationDays     int             `json:"duration_days"`
	APY              float64         `json:"apy"`
	MaxLtv           float64         `json:"max_ltv"`
	ActualLtv        float64         `json:"actual_ltv"`
	HealthFactor     float64         `json:"health_factor"`
	HealthLabel      string          `json:"health_label"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	InterestEstimate decimal.Decimal `json:"interest_estimate"`
	DailyInterest    decimal.Decimal `json:"daily_interest"`
	TotalToRepay     decimal.Decimal `json:"total_to_repay"`
	Deadline         time.Time       `json:"deadline"`
	CollateralPrice  decimal.Decimal `json:"collateral_price"`
	PriceStale       bool            `json:"price_stale"`
}

func (u *Usecase) toDTO(l *domain.Loan) *LoanDTO {
	debt := l.TotalDebt()
	return &LoanDTO{
		LoanID:           l.LoanID,
		Borrower:         l.Borrower,
		LockEventID:      l.LockEventID,
		CollateralAsset:  l.CollateralAsset,
		CollateralAmount: l.CollateralAmount,
		BorrowedAsset:    l.BorrowedAsset,
		BorrowedAmount:   l.BorrowedAmount,
		AccruedInterest:  l.AccruedInterest,
		LateFee:          l.LateFee,
		TotalDebt:        debt,
		LiquidationPrice: LiquidationPrice(debt, l.CollateralAmount, u.cfg.LiquidationThreshold),
		InterestRateAPY:  l.InterestRateAPY,
		DurationDays:     l.DurationDays,
		Deadline:         l.Deadline,
		DaysLate:         l.DaysLate(u.nowFn()),
		Status:           string(l.Status),
		HealthFactor:     l.HealthFactor,
		HealthLabel:      StatusLabel(l.HealthFactor),
		ForceLiquidate:   l.ForceLiquidate,
		OriginatedAt:     l.OriginationTime,
	}
}
