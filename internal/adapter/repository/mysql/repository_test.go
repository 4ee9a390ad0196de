package mysql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"polar-bridge-relayer/internal/domain/chain"
	loanDomain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/settlement"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&loanDomain.Loan{},
		&loanDomain.AccrualCheckpoint{},
		&loanDomain.LiquidationEvent{},
		&settlement.Record{},
		&settlement.Credit{},
		&chain.Cursor{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gdb
}

func testLoan(loanID, lockEventID string) *loanDomain.Loan {
	origination := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return &loanDomain.Loan{
		LoanID:           loanID,
		Borrower:         "GBORROWER00000000000000000000001",
		LockEventID:      lockEventID,
		CollateralAsset:  "XLM",
		CollateralAmount: decimal.NewFromInt(100),
		BorrowedAsset:    "PAS",
		BorrowedAmount:   decimal.NewFromInt(500),
		OriginationTime:  origination,
		DurationDays:     30,
		InterestRateAPY:  0.08,
		Deadline:         origination.AddDate(0, 0, 30),
		Status:           loanDomain.StatusActive,
	}
}
