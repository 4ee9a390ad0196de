package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	loanDomain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/oracle"
	"polar-bridge-relayer/internal/domain/settlement"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// domainError maps ledger and dispatcher errors onto HTTP responses.
func domainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, loanDomain.ErrNotFound), errors.Is(err, settlement.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, loanDomain.ErrInvalidLtv):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "requested LTV exceeds the tier cap"})
	case errors.Is(err, loanDomain.ErrInsufficientRepayment):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, loanDomain.ErrAlreadyTerminal):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "loan is already repaid or liquidated"})
	case errors.Is(err, loanDomain.ErrInvalidTransition), errors.Is(err, settlement.ErrNotRequeueable):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, oracle.ErrPriceUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "collateral price unavailable, retry later"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
