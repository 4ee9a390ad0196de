package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	domain "polar-bridge-relayer/internal/domain/loan"
)

// AccrualLedger is the slice of the loan ledger the scheduler drives.
type AccrualLedger interface {
	AccrueOneDay(ctx context.Context, loanID string, date time.Time) error
}

// Accrual applies daily interest and late fees to every open loan, once per
// calendar date. Missed runs are caught up date by date; AccrueOneDay's
// checkpoint makes re-application a no-op, so no date is ever skipped or
// double-applied.
type Accrual struct {
	loans       domain.Repository
	checkpoints domain.CheckpointRepository
	ledger      AccrualLedger
	interval    time.Duration

	running sync.Mutex // single-flight: a slow run is never started twice
	nowFn   func() time.Time
}

func NewAccrual(loans domain.Repository, checkpoints domain.CheckpointRepository, ledger AccrualLedger, interval time.Duration) *Accrual {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Accrual{
		loans:       loans,
		checkpoints: checkpoints,
		ledger:      ledger,
		interval:    interval,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock; tests only.
func (a *Accrual) SetNow(fn func() time.Time) { a.nowFn = fn }

func (a *Accrual) Run(ctx context.Context) {
	log.Printf("accrual: started, interval=%s", a.interval)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		if err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("accrual: run: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("accrual: stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce accrues every open loan up to today. One loan's failure never
// blocks the rest; it stays behind its checkpoint and the next run retries.
func (a *Accrual) RunOnce(ctx context.Context) error {
	if !a.running.TryLock() {
		return nil // previous run still in flight
	}
	defer a.running.Unlock()

	loans, err := a.loans.ListByStatus(ctx, domain.StatusActive, domain.StatusOverdue)
	if err != nil {
		return err
	}
	today := dateOnly(a.nowFn())
	var accrued, failed int
	for i := range loans {
		l := &loans[i]
		if err := a.catchUp(ctx, l, today); err != nil {
			failed++
			log.Printf("accrual: loan %s: %v", l.LoanID, err)
			continue
		}
		accrued++
	}
	if accrued > 0 || failed > 0 {
		log.Printf("accrual: run complete, loans=%d failed=%d", accrued, failed)
	}
	return nil
}

// catchUp walks every unapplied date from the loan's checkpoint (or its
// origination) through today.
func (a *Accrual) catchUp(ctx context.Context, l *domain.Loan, today time.Time) error {
	start := dateOnly(l.OriginationTime)
	cp, err := a.checkpoints.Get(ctx, l.ID)
	switch {
	case err == nil:
		start = dateOnly(cp.LastAccrualDate)
	case errors.Is(err, domain.ErrNotFound):
		// never accrued: first chargeable date is the day after origination
	default:
		return err
	}
	for date := start.AddDate(0, 0, 1); !date.After(today); date = date.AddDate(0, 0, 1) {
		if err := a.ledger.AccrueOneDay(ctx, l.LoanID, date); err != nil {
			return err
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
