package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	loanDomain "polar-bridge-relayer/internal/domain/loan"
)

func TestCheckpointRepository_AdvanceIsForwardOnly(t *testing.T) {
	repo := NewCheckpointRepository(openTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, 1); !errors.Is(err, loanDomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before first accrual", err)
	}

	day8 := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if err := repo.Advance(ctx, 1, day8); err != nil {
		t.Fatalf("first Advance: %v", err)
	}
	cp, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !cp.LastAccrualDate.Equal(day8) {
		t.Fatalf("checkpoint = %s, want %s", cp.LastAccrualDate, day8)
	}

	// replays and out-of-order dates never move it back
	day7 := day8.AddDate(0, 0, -1)
	if err := repo.Advance(ctx, 1, day7); err != nil {
		t.Fatal(err)
	}
	if err := repo.Advance(ctx, 1, day8); err != nil {
		t.Fatal(err)
	}
	cp, _ = repo.Get(ctx, 1)
	if !cp.LastAccrualDate.Equal(day8) {
		t.Fatalf("checkpoint moved back to %s", cp.LastAccrualDate)
	}

	day9 := day8.AddDate(0, 0, 1)
	if err := repo.Advance(ctx, 1, day9); err != nil {
		t.Fatal(err)
	}
	cp, _ = repo.Get(ctx, 1)
	if !cp.LastAccrualDate.Equal(day9) {
		t.Fatalf("checkpoint = %s, want %s", cp.LastAccrualDate, day9)
	}
}

func TestCheckpointRepository_PerLoanRows(t *testing.T) {
	repo := NewCheckpointRepository(openTestDB(t))
	ctx := context.Background()

	day := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if err := repo.Advance(ctx, 1, day); err != nil {
		t.Fatal(err)
	}
	if err := repo.Advance(ctx, 2, day.AddDate(0, 0, 3)); err != nil {
		t.Fatal(err)
	}

	cp1, _ := repo.Get(ctx, 1)
	cp2, _ := repo.Get(ctx, 2)
	if !cp1.LastAccrualDate.Equal(day) || !cp2.LastAccrualDate.Equal(day.AddDate(0, 0, 3)) {
		t.Fatalf("checkpoints bled across loans: %s vs %s", cp1.LastAccrualDate, cp2.LastAccrualDate)
	}
}
