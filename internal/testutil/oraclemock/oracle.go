package oraclemock

import (
	"context"

	"polar-bridge-relayer/internal/domain/oracle"
)

// Ensure compile-time compliance
var _ oracle.Oracle = (*Oracle)(nil)

// Oracle is a function-backed mock that satisfies oracle.Oracle. An unfilled
// GetPriceFn reports the price as unavailable.
type Oracle struct {
	GetPriceFn func(ctx context.Context, asset string) (oracle.Price, error)
}

func (m *Oracle) GetPrice(ctx context.Context, asset string) (oracle.Price, error) {
	if m.GetPriceFn != nil {
		return m.GetPriceFn(ctx, asset)
	}
	return oracle.Price{}, oracle.ErrPriceUnavailable
}

// Fixed returns a mock that always serves the given price for any asset.
func Fixed(p oracle.Price) *Oracle {
	return &Oracle{GetPriceFn: func(ctx context.Context, asset string) (oracle.Price, error) {
		p.Asset = asset
		return p, nil
	}}
}
