package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	loanDomain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/uow"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	u := NewGormUoW(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := u.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, testLoan("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "stellar-lock-0001")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the callback error", err)
	}

	if _, err := NewLoanRepository(db).GetByLoanID(ctx, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"); !errors.Is(err, loanDomain.ErrNotFound) {
		t.Fatalf("loan survived a rolled-back transaction: %v", err)
	}
}

func TestWithinLoanTx_LoadsAndCommits(t *testing.T) {
	db := openTestDB(t)
	u := NewGormUoW(db)
	loans := NewLoanRepository(db)
	ctx := context.Background()

	seed := testLoan("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "stellar-lock-0001")
	if err := loans.Create(ctx, seed); err != nil {
		t.Fatal(err)
	}

	err := u.WithinLoanTx(ctx, seed.LoanID, func(r uow.Repos, l *loanDomain.Loan) error {
		l.AccruedInterest = decimal.NewFromInt(3)
		return r.Loans.Save(ctx, l)
	})
	if err != nil {
		t.Fatalf("WithinLoanTx: %v", err)
	}

	got, err := loans.GetByLoanID(ctx, seed.LoanID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AccruedInterest.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("accrued = %s, want 3", got.AccruedInterest)
	}
}

func TestWithinLoanTx_UnknownLoan(t *testing.T) {
	u := NewGormUoW(openTestDB(t))

	err := u.WithinLoanTx(context.Background(), "ffffffffffffffffffffffffffffffff", func(r uow.Repos, l *loanDomain.Loan) error {
		t.Fatal("callback must not run for a missing loan")
		return nil
	})
	if !errors.Is(err, loanDomain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
