package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.NewFromInt(365)

// noDebtHealth is reported when a position carries no debt at all.
const noDebtHealth = 999.99

// DailyInterest is one day of simple interest on the principal. Accrual is
// applied day by day against a checkpoint, so this stays drift-free no
// matter how often the scheduler catches up.
func DailyInterest(principal decimal.Decimal, apy float64) decimal.Decimal {
	return principal.Mul(decimal.NewFromFloat(apy)).Div(daysPerYear)
}

// LateFeeFor charges ratePerDay against the debt owed at the deadline,
// capped at maxDays chargeable days.
func LateFeeFor(debtAtDeadline decimal.Decimal, ratePerDay float64, daysLate, maxDays int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	if daysLate > maxDays {
		daysLate = maxDays
	}
	return debtAtDeadline.Mul(decimal.NewFromFloat(ratePerDay)).Mul(decimal.NewFromInt(int64(daysLate)))
}

// HealthFactor is risk-adjusted collateral value over total debt. The result
// feeds display and scan ordering; liquidation decisions recompute it from
// the same decimal inputs at decision time.
func HealthFactor(collateralValue, totalDebt decimal.Decimal, liquidationThreshold float64) float64 {
	if totalDebt.Sign() <= 0 {
		return noDebtHealth
	}
	hf, _ := collateralValue.
		Mul(decimal.NewFromFloat(liquidationThreshold)).
		Div(totalDebt).
		Float64()
	return hf
}

// LiquidationPrice is the collateral price below which the position becomes
// liquidatable.
func LiquidationPrice(totalDebt, collateralAmount decimal.Decimal, liquidationThreshold float64) decimal.Decimal {
	if collateralAmount.Sign() <= 0 {
		return decimal.Zero
	}
	return totalDebt.Div(collateralAmount.Mul(decimal.NewFromFloat(liquidationThreshold)))
}

// RequiredCollateralValue inverts the LTV: how much collateral value backs a
// borrow at the given ratio.
func RequiredCollateralValue(borrow decimal.Decimal, ltv float64) decimal.Decimal {
	return borrow.Div(decimal.NewFromFloat(ltv))
}

// SplitPenalty divides the penalty between protocol treasury and liquidator.
// The liquidator cut is computed by subtraction so the two always sum back
// to the exact penalty.
func SplitPenalty(penalty decimal.Decimal, protocolShare float64) (protocolCut, liquidatorCut decimal.Decimal) {
	protocolCut = penalty.Mul(decimal.NewFromFloat(protocolShare))
	liquidatorCut = penalty.Sub(protocolCut)
	return protocolCut, liquidatorCut
}

// LiquidationBreakdown is everything a liquidation needs to move value:
// computed once, in decimals, from the loan and the price at decision time.
type LiquidationBreakdown struct {
	TotalDebt          decimal.Decimal
	Penalty            decimal.Decimal
	ProtocolCut        decimal.Decimal
	LiquidatorCut      decimal.Decimal
	TotalToRecover     decimal.Decimal
	CollateralValue    decimal.Decimal
	CollateralSeized   decimal.Decimal
	CollateralReturned decimal.Decimal
	Shortfall          decimal.Decimal
}

// ComputeLiquidation seizes just enough collateral to cover debt plus
// penalty at the given price; any remainder goes back to the borrower.
func ComputeLiquidation(totalDebt, collateralAmount, price decimal.Decimal, penaltyRate, protocolShare float64) LiquidationBreakdown {
	penalty := totalDebt.Mul(decimal.NewFromFloat(penaltyRate))
	protocolCut, liquidatorCut := SplitPenalty(penalty, protocolShare)
	toRecover := totalDebt.Add(penalty)

	collateralValue := collateralAmount.Mul(price)
	seized := collateralAmount
	if price.Sign() > 0 {
		needed := toRecover.Div(price)
		if needed.LessThan(collateralAmount) {
			seized = needed
		}
	}
	returned := collateralAmount.Sub(seized)
	shortfall := decimal.Zero
	if collateralValue.LessThan(toRecover) {
		shortfall = toRecover.Sub(collateralValue)
	}
	return LiquidationBreakdown{
		TotalDebt:          totalDebt,
		Penalty:            penalty,
		ProtocolCut:        protocolCut,
		LiquidatorCut:      liquidatorCut,
		TotalToRecover:     toRecover,
		CollateralValue:    collateralValue,
		CollateralSeized:   seized,
		CollateralReturned: returned,
		Shortfall:          shortfall,
	}
}

// StatusLabel maps a health factor to the operator-facing risk label.
// Pure data in, pure label out; thresholds are protocol constants.
func StatusLabel(hf float64) string {
	switch {
	case hf > 1.5:
		return "safe"
	case hf > 1.2:
		return "moderate"
	case hf > 1.0:
		return "danger"
	default:
		return "liquidatable"
	}
}

// dateOnly truncates to midnight UTC; accrual keys on calendar dates.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
