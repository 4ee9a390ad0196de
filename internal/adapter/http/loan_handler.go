package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/usecase/loan"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type originateReq struct {
	Borrower         string          `json:"borrower"          validate:"required,addr"`
	LockEventID      string          `json:"lock_event_id"     validate:"required"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	BorrowedAmount   decimal.Decimal `json:"borrowed_amount"`
	DurationDays     int             `json:"duration_days"     validate:"gte=0,lte=365"`
}

// Originate opens a loan against an already-confirmed collateral lock. The
// watcher normally drives this through the dispatcher; the endpoint covers
// manual recovery and integrations that confirm locks out of band.
func (h *LoanHandler) Originate(c echo.Context) error {
	var req originateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	if req.CollateralAmount.Sign() <= 0 {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: []FieldError{{Field: "collateral_amount", Message: "must be positive"}},
		})
	}
	dto, err := h.uc.Originate(c.Request().Context(), loan.OriginateInput{
		Borrower:         req.Borrower,
		LockEventID:      req.LockEventID,
		CollateralAmount: req.CollateralAmount,
		BorrowedAmount:   req.BorrowedAmount,
		DurationDays:     req.DurationDays,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) Get(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	dto, err := h.uc.Get(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type repayReq struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *LoanHandler) Repay(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	var req repayReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	dto, err := h.uc.Repay(c.Request().Context(), loanID, req.Amount)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type addCollateralReq struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *LoanHandler) AddCollateral(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	var req addCollateralReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.Amount.Sign() <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount must be positive"})
	}
	dto, err := h.uc.AddCollateral(c.Request().Context(), loanID, req.Amount)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) LiquidationEvents(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	events, err := h.uc.LiquidationEvents(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "events": events})
}

func (h *LoanHandler) ListByBorrower(c echo.Context) error {
	borrower := c.Param("address")
	if !reAddr.MatchString(borrower) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
	}
	loans, err := h.uc.ListByBorrower(c.Request().Context(), borrower)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"borrower": borrower, "loans": loans})
}

func (h *LoanHandler) Summary(c echo.Context) error {
	borrower := c.Param("address")
	if !reAddr.MatchString(borrower) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
	}
	dto, err := h.uc.Summary(c.Request().Context(), borrower)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
