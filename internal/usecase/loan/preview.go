package loan

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	domain "polar-bridge-relayer/internal/domain/loan"
)

// Preview computes the terms of a hypothetical loan without touching any
// state: collateral needed, health factor, interest over the full term and
// the price at which the position would become liquidatable.
func (u *Usecase) Preview(ctx context.Context, in PreviewInput) (*PreviewDTO, error) {
	if in.BorrowAmount.Sign() <= 0 {
		return nil, errors.New("borrow amount must be positive")
	}
	if in.DurationDays <= 0 {
		in.DurationDays = 30
	}
	tier := u.cfg.TierFor(in.DurationDays)
	ltv := in.Ltv
	if ltv == 0 {
		ltv = tier.MaxLtv
	}
	if ltv < 0 || ltv > tier.MaxLtv {
		return nil, domain.ErrInvalidLtv
	}

	price, err := u.collateralPrice(ctx)
	if err != nil {
		return nil, err
	}
	if price.Value.Sign() <= 0 {
		return nil, errors.New("non-positive collateral price")
	}

	collateralValue := RequiredCollateralValue(in.BorrowAmount, ltv)
	collateralNeeded := collateralValue.Div(price.Value)
	hf := HealthFactor(collateralValue, in.BorrowAmount, u.cfg.LiquidationThreshold)

	daily := DailyInterest(in.BorrowAmount, tier.APY)
	estimate := daily.Mul(decimal.NewFromInt(int64(in.DurationDays)))

	return &PreviewDTO{
		CollateralNeeded: collateralNeeded,
		CollateralValue:  collateralValue,
		BorrowAmount:     in.BorrowAmount,
		DurationDays:     in.DurationDays,
		APY:              tier.APY,
		MaxLtv:           tier.MaxLtv,
		ActualLtv:        ltv,
		HealthFactor:     hf,
		HealthLabel:      StatusLabel(hf),
		LiquidationPrice: LiquidationPrice(in.BorrowAmount, collateralNeeded, u.cfg.LiquidationThreshold),
		InterestEstimate: estimate,
		DailyInterest:    daily,
		TotalToRepay:     in.BorrowAmount.Add(estimate),
		Deadline:         u.nowFn().AddDate(0, 0, in.DurationDays),
		CollateralPrice:  price.Value,
		PriceStale:       price.Stale,
	}, nil
}
