package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/domain/settlement"
)

func testRecord(eventID string) *settlement.Record {
	return &settlement.Record{
		SourceEventID: eventID,
		SourceChain:   "stellar",
		Kind:          settlement.KindLock,
		Amount:        decimal.NewFromInt(100),
		SourceAddr:    "GBORROWER00000000000000000000001",
		Status:        settlement.StatusPending,
		ObservedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSettlementRepository_DuplicateSourceEvent(t *testing.T) {
	repo := NewSettlementRepository(openTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("evt-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, testRecord("evt-1"))
	if !errors.Is(err, settlement.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestSettlementRepository_GetBySourceEventID(t *testing.T) {
	repo := NewSettlementRepository(openTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("evt-1")); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetBySourceEventID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetBySourceEventID: %v", err)
	}
	if got.Kind != settlement.KindLock {
		t.Fatalf("kind = %q, want lock", got.Kind)
	}

	if _, err := repo.GetBySourceEventID(ctx, "evt-missing"); !errors.Is(err, settlement.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSettlementRepository_SaveAdvancesStatus(t *testing.T) {
	repo := NewSettlementRepository(openTestDB(t))
	ctx := context.Background()

	rec := testRecord("evt-1")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Status = settlement.StatusSubmitted
	rec.DestTxRef = "polkadot-tx-0001"
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := repo.GetBySourceEventID(ctx, "evt-1")
	if got.Status != settlement.StatusSubmitted || got.DestTxRef != "polkadot-tx-0001" {
		t.Fatalf("record = %+v after save", got)
	}
}

func TestSettlementRepository_ListByStatus(t *testing.T) {
	repo := NewSettlementRepository(openTestDB(t))
	ctx := context.Background()

	a := testRecord("evt-a")
	b := testRecord("evt-b")
	b.Status = settlement.StatusFailed
	c := testRecord("evt-c")
	for _, rec := range []*settlement.Record{a, b, c} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.ListByStatus(ctx, settlement.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].SourceEventID != "evt-a" || pending[1].SourceEventID != "evt-c" {
		t.Fatalf("order = %s, %s", pending[0].SourceEventID, pending[1].SourceEventID)
	}
}

func TestSettlementRepository_DuplicateCredit(t *testing.T) {
	repo := NewSettlementRepository(openTestDB(t))
	ctx := context.Background()

	c := &settlement.Credit{
		SourceEventID: "evt-stray",
		Address:       "5PAYER000000000000000000000000003",
		Asset:         "PAS",
		Amount:        decimal.NewFromInt(25),
	}
	if err := repo.CreateCredit(ctx, c); err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}
	dup := &settlement.Credit{SourceEventID: "evt-stray", Address: c.Address, Asset: "PAS", Amount: c.Amount}
	if err := repo.CreateCredit(ctx, dup); !errors.Is(err, settlement.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}
