package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/config"
	domain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/oracle"
	loanuc "polar-bridge-relayer/internal/usecase/loan"
)

// ScanLedger is the slice of the loan ledger the scanner drives.
type ScanLedger interface {
	RefreshHealth(ctx context.Context, l *domain.Loan, price decimal.Decimal) (float64, error)
	Liquidate(ctx context.Context, loanID, reason string) (*loanuc.LiquidationDTO, error)
}

// Scanner sweeps every open loan against liquidation policy: health factor
// below 1.0 at the current price, or hopelessly overdue. It runs alongside
// the accrual job; the two touch disjoint transitions and per-loan writes
// are serialized by the store.
type Scanner struct {
	cfg    *config.Config
	loans  domain.Repository
	ledger ScanLedger
	prices oracle.Oracle

	running sync.Mutex
	nowFn   func() time.Time
}

func NewScanner(cfg *config.Config, loans domain.Repository, ledger ScanLedger, prices oracle.Oracle) *Scanner {
	return &Scanner{
		cfg:    cfg,
		loans:  loans,
		ledger: ledger,
		prices: prices,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock; tests only.
func (s *Scanner) SetNow(fn func() time.Time) { s.nowFn = fn }

func (s *Scanner) Run(ctx context.Context) {
	log.Printf("liquidation: scanner started, interval=%s", s.cfg.LiquidationScanInterval)
	ticker := time.NewTicker(s.cfg.LiquidationScanInterval)
	defer ticker.Stop()
	for {
		if ids, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			log.Printf("liquidation: scan: %v", err)
		} else if len(ids) > 0 {
			log.Printf("liquidation: scan liquidated %d loans", len(ids))
		}
		select {
		case <-ctx.Done():
			log.Printf("liquidation: scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scan evaluates every active and overdue loan once and returns the ids it
// liquidated. Idempotent: terminal loans are skipped, and a loan whose
// liquidation errors stays a candidate for the next scan. A missing price
// is a transient block for the whole pass, not an error per loan.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	if !s.running.TryLock() {
		return nil, nil // previous scan still in flight
	}
	defer s.running.Unlock()

	price, err := s.prices.GetPrice(ctx, s.cfg.CollateralAsset)
	if err != nil {
		if errors.Is(err, oracle.ErrPriceUnavailable) {
			log.Printf("liquidation: no price for %s, skipping pass", s.cfg.CollateralAsset)
			return nil, nil
		}
		return nil, err
	}

	loans, err := s.loans.ListByStatus(ctx, domain.StatusActive, domain.StatusOverdue)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	var liquidated []string
	for i := range loans {
		l := &loans[i]
		if l.Status.Terminal() {
			continue
		}
		hf, err := s.ledger.RefreshHealth(ctx, l, price.Value)
		if err != nil {
			log.Printf("liquidation: refresh health %s: %v", l.LoanID, err)
			continue
		}

		reason := ""
		switch {
		case hf < 1.0:
			reason = "health_factor"
		case l.DaysLate(now) >= s.cfg.MaxLateDays:
			reason = "deadline"
		}
		if reason == "" {
			continue
		}

		if _, err := s.ledger.Liquidate(ctx, l.LoanID, reason); err != nil {
			if errors.Is(err, domain.ErrAlreadyTerminal) {
				continue // raced with a repayment or another scanner
			}
			// stays a candidate next scan
			log.Printf("liquidation: liquidate %s: %v", l.LoanID, err)
			continue
		}
		liquidated = append(liquidated, l.LoanID)
	}
	return liquidated, nil
}
