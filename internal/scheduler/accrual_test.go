package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/testutil/loanmock"
)

type accrualCall struct {
	loanID string
	date   time.Time
}

type accrualLedgerMock struct {
	mu     sync.Mutex
	calls  []accrualCall
	failOn string // loan id that errors
}

func (m *accrualLedgerMock) AccrueOneDay(ctx context.Context, loanID string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loanID == m.failOn {
		return errors.New("accrue boom")
	}
	m.calls = append(m.calls, accrualCall{loanID: loanID, date: date})
	return nil
}

func (m *accrualLedgerMock) callsFor(loanID string) []accrualCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []accrualCall
	for _, c := range m.calls {
		if c.loanID == loanID {
			out = append(out, c)
		}
	}
	return out
}

func openLoan(id string, origination time.Time) domain.Loan {
	return domain.Loan{
		ID:              1,
		LoanID:          id,
		BorrowedAmount:  decimal.NewFromInt(500),
		OriginationTime: origination,
		DurationDays:    30,
		InterestRateAPY: 0.08,
		Deadline:        origination.AddDate(0, 0, 30),
		Status:          domain.StatusActive,
	}
}

func TestRunOnce_CatchesUpFromCheckpoint(t *testing.T) {
	today := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	l := openLoan("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", today.AddDate(0, 0, -20))

	loans := &loanmock.Repo{
		ListByStatusFn: func(ctx context.Context, statuses ...domain.Status) ([]domain.Loan, error) {
			return []domain.Loan{l}, nil
		},
	}
	checkpoints := &loanmock.Checkpoints{
		GetFn: func(ctx context.Context, loanID uint64) (*domain.AccrualCheckpoint, error) {
			return &domain.AccrualCheckpoint{
				LoanID:          loanID,
				LastAccrualDate: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	ledger := &accrualLedgerMock{}
	a := NewAccrual(loans, checkpoints, ledger, time.Hour)
	a.SetNow(func() time.Time { return today })

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	calls := ledger.callsFor(l.LoanID)
	if len(calls) != 3 {
		t.Fatalf("accrual calls = %d, want 3 (the 8th, 9th and 10th)", len(calls))
	}
	for i, c := range calls {
		want := time.Date(2026, 3, 8+i, 0, 0, 0, 0, time.UTC)
		if !c.date.Equal(want) {
			t.Fatalf("call %d date = %s, want %s", i, c.date, want)
		}
	}
}

func TestRunOnce_FirstAccrualStartsAfterOrigination(t *testing.T) {
	today := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	l := openLoan("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", today.AddDate(0, 0, -2))

	loans := &loanmock.Repo{
		ListByStatusFn: func(ctx context.Context, statuses ...domain.Status) ([]domain.Loan, error) {
			return []domain.Loan{l}, nil
		},
	}
	ledger := &accrualLedgerMock{}
	// unfilled Checkpoints.Get reports ErrNotFound: a loan never accrued
	a := NewAccrual(loans, &loanmock.Checkpoints{}, ledger, time.Hour)
	a.SetNow(func() time.Time { return today })

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := ledger.callsFor(l.LoanID)
	if len(calls) != 2 {
		t.Fatalf("accrual calls = %d, want 2", len(calls))
	}
	if first := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC); !calls[0].date.Equal(first) {
		t.Fatalf("first accrual date = %s, want %s", calls[0].date, first)
	}
}

func TestRunOnce_OneLoanFailureDoesNotBlockOthers(t *testing.T) {
	today := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	bad := openLoan("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", today.AddDate(0, 0, -1))
	good := openLoan("cccccccccccccccccccccccccccccccc", today.AddDate(0, 0, -1))

	loans := &loanmock.Repo{
		ListByStatusFn: func(ctx context.Context, statuses ...domain.Status) ([]domain.Loan, error) {
			return []domain.Loan{bad, good}, nil
		},
	}
	ledger := &accrualLedgerMock{failOn: bad.LoanID}
	a := NewAccrual(loans, &loanmock.Checkpoints{}, ledger, time.Hour)
	a.SetNow(func() time.Time { return today })

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.callsFor(good.LoanID)) != 1 {
		t.Fatal("healthy loan was not accrued")
	}
	if len(ledger.callsFor(bad.LoanID)) != 0 {
		t.Fatal("failing loan recorded calls")
	}
}
