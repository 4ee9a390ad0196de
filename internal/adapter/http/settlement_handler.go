package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"polar-bridge-relayer/internal/domain/settlement"
)

// Requeuer re-arms a failed settlement; implemented by the dispatcher.
type Requeuer interface {
	Requeue(ctx context.Context, sourceEventID string) (*settlement.Record, error)
}

// SettlementReader is the read-only slice of the settlement store the
// operator surface needs.
type SettlementReader interface {
	GetBySourceEventID(ctx context.Context, eventID string) (*settlement.Record, error)
}

type SettlementHandler struct {
	reader   SettlementReader
	requeuer Requeuer
}

func NewSettlementHandler(reader SettlementReader, requeuer Requeuer) *SettlementHandler {
	return &SettlementHandler{reader: reader, requeuer: requeuer}
}

func (h *SettlementHandler) Get(c echo.Context) error {
	eventID := c.Param("source_event_id")
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing source_event_id"})
	}
	rec, err := h.reader.GetBySourceEventID(c.Request().Context(), eventID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Requeue puts a failed settlement back in the retry queue. Only failed
// records move; anything else conflicts.
func (h *SettlementHandler) Requeue(c echo.Context) error {
	eventID := c.Param("source_event_id")
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing source_event_id"})
	}
	rec, err := h.requeuer.Requeue(c.Request().Context(), eventID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
