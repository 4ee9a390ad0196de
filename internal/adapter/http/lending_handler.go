package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/config"
	"polar-bridge-relayer/internal/usecase/loan"
)

// LendingHandler serves the read-only lending surface: terms preview and
// the published book parameters.
type LendingHandler struct {
	cfg *config.Config
	uc  *loan.Usecase
}

func NewLendingHandler(cfg *config.Config, uc *loan.Usecase) *LendingHandler {
	return &LendingHandler{cfg: cfg, uc: uc}
}

type previewReq struct {
	BorrowAmount decimal.Decimal `json:"borrow_amount"`
	Ltv          float64         `json:"ltv"           validate:"ltv"`
	DurationDays int             `json:"duration_days" validate:"gte=0,lte=365"`
}

func (h *LendingHandler) Preview(c echo.Context) error {
	var req previewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	if req.BorrowAmount.Sign() <= 0 {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: []FieldError{{Field: "borrow_amount", Message: "must be positive"}},
		})
	}
	dto, err := h.uc.Preview(c.Request().Context(), loan.PreviewInput{
		BorrowAmount: req.BorrowAmount,
		Ltv:          req.Ltv,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// Config publishes the lending book so clients can build term pickers
// without hardcoding rates.
func (h *LendingHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"collateral_asset":      h.cfg.CollateralAsset,
		"borrowed_asset":        h.cfg.BorrowedAsset,
		"quote_currency":        h.cfg.QuoteCurrency,
		"tiers":                 h.cfg.Tiers,
		"max_ltv":               h.cfg.MaxLtv,
		"liquidation_threshold": h.cfg.LiquidationThreshold,
		"liquidation_penalty":   h.cfg.LiquidationPenalty,
		"late_fee_per_day":      h.cfg.LateFeePerDay,
		"max_late_days":         h.cfg.MaxLateDays,
		"grace_period_days":     h.cfg.GracePeriodDays,
		"min_collateral":        h.cfg.MinCollateral,
		"min_borrow":            h.cfg.MinBorrow,
	})
}
