package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Price is one quoted asset price. Stale means the upstream fetch failed and
// this is the last known value; callers making liquidation decisions may
// still use it, callers originating loans should treat prolonged staleness
// as a transient block.
type Price struct {
	Asset string
	Value decimal.Decimal
	AsOf  time.Time
	Stale bool
}

// Oracle resolves the current price of an asset in the quote currency.
type Oracle interface {
	GetPrice(ctx context.Context, asset string) (Price, error)
}

// ErrPriceUnavailable: no fresh quote and nothing cached. Dependent
// operations must treat this as transient, not fatal.
var ErrPriceUnavailable = errors.New("price unavailable")
