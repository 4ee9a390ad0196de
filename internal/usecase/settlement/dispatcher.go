package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/config"
	"polar-bridge-relayer/internal/domain/chain"
	domainLoan "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/oracle"
	"polar-bridge-relayer/internal/domain/settlement"
	loanuc "polar-bridge-relayer/internal/usecase/loan"
)

const (
	backoffBase = 5 * time.Second
	backoffCap  = 10 * time.Minute
)

// Ledger is what the dispatcher needs from the loan ledger once a
// settlement confirms.
type Ledger interface {
	Originate(ctx context.Context, in loanuc.OriginateInput) (*loanuc.LoanDTO, error)
	Repay(ctx context.Context, loanID string, amount decimal.Decimal) (*loanuc.RepayDTO, error)
}

// Dispatcher turns at-least-once event delivery into at-most-once
// destination effects. One settlement record exists per source event id
// (store uniqueness), its status only moves forward, and all work for the
// same id is serialized through a per-key lock. Distinct ids settle
// concurrently.
type Dispatcher struct {
	cfg         *config.Config
	settlements settlement.Repository
	ledger      Ledger
	prices      oracle.Oracle
	source      chain.Client // vault side: collateral locks and releases
	dest        chain.Client // pool side: borrowed-asset transfers

	baseCtx context.Context
	wg      sync.WaitGroup

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	inflight map[string]bool

	nowFn func() time.Time
}

func NewDispatcher(cfg *config.Config, repo settlement.Repository, ledger Ledger, prices oracle.Oracle, source, dest chain.Client) *Dispatcher {
	return &Dispatcher{
		cfg:         cfg,
		settlements: repo,
		ledger:      ledger,
		prices:      prices,
		source:      source,
		dest:        dest,
		baseCtx:     context.Background(),
		keyLocks:    map[string]*sync.Mutex{},
		inflight:    map[string]bool{},
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetBaseContext installs the process-lifetime context used by background
// finality waits so shutdown cancels them. In-flight submissions are safe
// to abandon: their outcome is re-checked, not re-issued, on restart.
func (d *Dispatcher) SetBaseContext(ctx context.Context) { d.baseCtx = ctx }

// SetNow overrides the clock; tests only.
func (d *Dispatcher) SetNow(fn func() time.Time) { d.nowFn = fn }

// Wait blocks until background confirmations drain; call after cancelling
// the base context.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) lockKey(key string) func() {
	d.mu.Lock()
	l, ok := d.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		d.keyLocks[key] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Settle is the watcher-facing entry point: look up or create the record
// for this event and drive it one step forward. Confirmed and failed
// records return immediately; that is the exactly-once guarantee under
// duplicate delivery.
func (d *Dispatcher) Settle(ctx context.Context, ev chain.Event) (*settlement.Record, error) {
	if ev.ID == "" {
		return nil, errors.New("event without id")
	}
	unlock := d.lockKey(ev.ID)
	defer unlock()

	rec, err := d.getOrCreate(ctx, ev)
	if err != nil {
		return nil, err
	}
	return d.step(ctx, rec)
}

// ReleaseCollateral moves locked collateral out of the source-chain vault.
// The synthetic settlement key release:<loan>:<purpose> makes each purpose
// at-most-once per loan. The call returns once the intent is durably
// recorded; submission and finality run in the background.
func (d *Dispatcher) ReleaseCollateral(ctx context.Context, l *domainLoan.Loan, to string, amount decimal.Decimal, purpose string) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("release amount must be positive")
	}
	key := fmt.Sprintf("release:%s:%s", l.LoanID, purpose)
	unlock := d.lockKey(key)
	defer unlock()

	rec, err := d.settlements.GetBySourceEventID(ctx, key)
	if errors.Is(err, settlement.ErrNotFound) {
		rec = &settlement.Record{
			SourceEventID: key,
			SourceChain:   "internal",
			Kind:          settlement.KindRelease,
			Amount:        amount,
			DestAmount:    amount,
			DestAddr:      to,
			LoanRef:       l.LoanID,
			Status:        settlement.StatusPending,
			NextAttemptAt: d.nowFn(),
			ObservedAt:    d.nowFn(),
		}
		if err := d.settlements.Create(ctx, rec); err != nil && !errors.Is(err, settlement.ErrDuplicate) {
			return err
		}
		if rec.ID == 0 {
			if rec, err = d.settlements.GetBySourceEventID(ctx, key); err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		unlock := d.lockKey(key)
		defer unlock()
		fresh, err := d.settlements.GetBySourceEventID(d.baseCtx, key)
		if err != nil {
			return
		}
		if _, err := d.step(d.baseCtx, fresh); err != nil {
			log.Printf("dispatcher: release %s: %v", key, err)
		}
	}()
	return nil
}

// Requeue resets a failed record to pending; the manual-retry escape hatch
// for operators. The only backwards status transition that exists.
func (d *Dispatcher) Requeue(ctx context.Context, sourceEventID string) (*settlement.Record, error) {
	unlock := d.lockKey(sourceEventID)
	defer unlock()
	rec, err := d.settlements.GetBySourceEventID(ctx, sourceEventID)
	if err != nil {
		return nil, err
	}
	if rec.Status != settlement.StatusFailed {
		return nil, fmt.Errorf("settlement %s is %s: %w", sourceEventID, rec.Status, settlement.ErrNotRequeueable)
	}
	rec.Status = settlement.StatusPending
	rec.Attempts = 0
	rec.NextAttemptAt = d.nowFn()
	rec.LastError = ""
	if err := d.settlements.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Run drives retries: pending records whose backoff expired and submitted
// records with no confirmation watcher (e.g. after a restart). The watcher
// does not redeliver past its cursor, so this loop is what makes transient
// failures eventually settle or exhaust.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	for _, status := range []settlement.Status{settlement.StatusPending, settlement.StatusSubmitted} {
		recs, err := d.settlements.ListByStatus(ctx, status)
		if err != nil {
			log.Printf("dispatcher: sweep list %s: %v", status, err)
			continue
		}
		for i := range recs {
			rec := recs[i]
			if rec.Status == settlement.StatusPending && d.nowFn().Before(rec.NextAttemptAt) {
				continue
			}
			unlock := d.lockKey(rec.SourceEventID)
			fresh, err := d.settlements.GetBySourceEventID(ctx, rec.SourceEventID)
			if err == nil {
				if _, err := d.step(ctx, fresh); err != nil {
					log.Printf("dispatcher: sweep %s: %v", rec.SourceEventID, err)
				}
			}
			unlock()
		}
	}
}

func (d *Dispatcher) getOrCreate(ctx context.Context, ev chain.Event) (*settlement.Record, error) {
	rec, err := d.settlements.GetBySourceEventID(ctx, ev.ID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, settlement.ErrNotFound) {
		return nil, err
	}
	kind := settlement.KindLock
	if ev.Type == chain.EventPaidBack {
		kind = settlement.KindPayback
	}
	rec = &settlement.Record{
		SourceEventID: ev.ID,
		SourceChain:   ev.Chain,
		SourceTxRef:   ev.TxRef,
		Kind:          kind,
		Amount:        ev.Amount,
		SourceAddr:    ev.From,
		DestAddr:      ev.To,
		LoanRef:       ev.LoanRef,
		LedgerCursor:  ev.Cursor,
		Status:        settlement.StatusPending,
		NextAttemptAt: d.nowFn(),
		ObservedAt:    ev.ObservedAt,
	}
	if err := d.settlements.Create(ctx, rec); err != nil {
		if errors.Is(err, settlement.ErrDuplicate) {
			// concurrent delivery won the insert
			return d.settlements.GetBySourceEventID(ctx, ev.ID)
		}
		return nil, err
	}
	return rec, nil
}

// step advances a record one state. Caller holds the key lock.
func (d *Dispatcher) step(ctx context.Context, rec *settlement.Record) (*settlement.Record, error) {
	switch rec.Status {
	case settlement.StatusConfirmed, settlement.StatusFailed:
		return rec, nil
	case settlement.StatusSubmitted:
		d.spawnConfirm(rec.SourceEventID)
		return rec, nil
	}

	// pending
	if d.nowFn().Before(rec.NextAttemptAt) {
		return rec, nil
	}
	if rec.Kind == settlement.KindPayback {
		return rec, d.applyPayback(ctx, rec)
	}

	// lock and release both submit a transfer and wait out finality
	if err := d.submit(ctx, rec); err != nil {
		d.recordFailure(ctx, rec, err)
		return rec, nil
	}
	rec.Status = settlement.StatusSubmitted
	if err := d.settlements.Save(ctx, rec); err != nil {
		return rec, err
	}
	d.spawnConfirm(rec.SourceEventID)
	return rec, nil
}

// submit executes the destination transfer exactly once per invocation and
// stores the tx ref. For lock events the destination amount is the
// collateral value at the tier LTV, priced now and persisted.
func (d *Dispatcher) submit(ctx context.Context, rec *settlement.Record) error {
	client := d.clientFor(rec)
	switch rec.Kind {
	case settlement.KindLock:
		if rec.DestAmount.Sign() == 0 {
			price, err := d.prices.GetPrice(ctx, d.cfg.CollateralAsset)
			if err != nil {
				return err
			}
			tier := d.cfg.TierFor(30)
			rec.DestAmount = rec.Amount.Mul(price.Value).Mul(decimal.NewFromFloat(tier.MaxLtv)).Round(10)
		}
	case settlement.KindRelease:
		// DestAmount fixed at record creation
	}
	txRef, err := client.SubmitTransfer(ctx, rec.DestAddr, rec.DestAmount, rec.SourceEventID)
	if err != nil {
		return err
	}
	rec.DestTxRef = txRef
	return nil
}

// applyPayback is a pure store effect: repay the referenced loan, or credit
// the payer's ledger balance when no loan is referenced.
func (d *Dispatcher) applyPayback(ctx context.Context, rec *settlement.Record) error {
	var err error
	if rec.LoanRef != "" {
		_, err = d.ledger.Repay(ctx, rec.LoanRef, rec.Amount)
		if errors.Is(err, domainLoan.ErrInsufficientRepayment) ||
			errors.Is(err, domainLoan.ErrAlreadyTerminal) ||
			errors.Is(err, domainLoan.ErrNotFound) {
			d.fail(ctx, rec, err)
			return nil
		}
	} else {
		err = d.settlements.CreateCredit(ctx, &settlement.Credit{
			SourceEventID: rec.SourceEventID,
			Address:       rec.SourceAddr,
			Asset:         d.cfg.BorrowedAsset,
			Amount:        rec.Amount,
		})
		if errors.Is(err, settlement.ErrDuplicate) {
			err = nil
		}
	}
	if err != nil {
		d.recordFailure(ctx, rec, err)
		return nil
	}
	rec.Status = settlement.StatusConfirmed
	return d.settlements.Save(ctx, rec)
}

// spawnConfirm starts (at most one) background finality watcher for a
// submitted record. Runs on the base context so shutdown cancels it.
func (d *Dispatcher) spawnConfirm(key string) {
	d.mu.Lock()
	if d.inflight[key] {
		d.mu.Unlock()
		return
	}
	d.inflight[key] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inflight, key)
			d.mu.Unlock()
		}()
		d.confirm(d.baseCtx, key)
	}()
}

func (d *Dispatcher) confirm(ctx context.Context, key string) {
	unlock := d.lockKey(key)
	defer unlock()

	rec, err := d.settlements.GetBySourceEventID(ctx, key)
	if err != nil || rec.Status != settlement.StatusSubmitted {
		return
	}
	client := d.clientFor(rec)
	fctx, cancel := context.WithTimeout(ctx, d.cfg.FinalityTimeout)
	err = client.WaitForFinality(fctx, rec.DestTxRef)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return // shutting down; outcome re-checked on restart
		}
		// leave submitted: the tx may still confirm; sweep retries the wait
		rec.Attempts++
		rec.LastError = err.Error()
		if saveErr := d.settlements.Save(ctx, rec); saveErr != nil {
			log.Printf("dispatcher: save after finality error %s: %v", key, saveErr)
		}
		return
	}

	rec.Status = settlement.StatusConfirmed
	rec.LastError = ""
	if err := d.settlements.Save(ctx, rec); err != nil {
		log.Printf("dispatcher: confirm save %s: %v", key, err)
		return
	}
	log.Printf("dispatcher: settlement %s confirmed (kind=%s dest_tx=%s)", key, rec.Kind, rec.DestTxRef)
	d.postConfirm(ctx, rec)
}

// postConfirm runs the ledger side effect of a freshly confirmed record.
// Origination is idempotent per lock event, so a repeated call is harmless;
// a failed call is logged and recoverable through the originate API.
func (d *Dispatcher) postConfirm(ctx context.Context, rec *settlement.Record) {
	if rec.Kind != settlement.KindLock {
		return
	}
	_, err := d.ledger.Originate(ctx, loanuc.OriginateInput{
		Borrower:         rec.DestAddr,
		LockEventID:      rec.SourceEventID,
		CollateralAmount: rec.Amount,
		BorrowedAmount:   rec.DestAmount,
		DurationDays:     30,
	})
	if err != nil {
		log.Printf("dispatcher: originate for confirmed lock %s failed: %v", rec.SourceEventID, err)
	}
}

// recordFailure classifies and books an attempt: transient failures back
// off exponentially until the ceiling converts them to failed; permanent
// ones fail immediately and are never retried.
func (d *Dispatcher) recordFailure(ctx context.Context, rec *settlement.Record, cause error) {
	rec.Attempts++
	rec.LastError = cause.Error()
	switch {
	case settlement.Classify(cause) == settlement.ClassPermanent:
		rec.Status = settlement.StatusFailed
		log.Printf("dispatcher: settlement %s failed permanently: %v", rec.SourceEventID, cause)
	case rec.Attempts >= d.cfg.MaxSettleAttempts:
		rec.Status = settlement.StatusFailed
		rec.LastError = fmt.Sprintf("%s: %s", settlement.ErrExhausted, cause)
		log.Printf("dispatcher: settlement %s exhausted after %d attempts: %v", rec.SourceEventID, rec.Attempts, cause)
	default:
		rec.NextAttemptAt = d.nowFn().Add(backoff(rec.Attempts))
	}
	if err := d.settlements.Save(ctx, rec); err != nil {
		log.Printf("dispatcher: save failure for %s: %v", rec.SourceEventID, err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, rec *settlement.Record, cause error) {
	rec.Status = settlement.StatusFailed
	rec.LastError = cause.Error()
	if err := d.settlements.Save(ctx, rec); err != nil {
		log.Printf("dispatcher: save failure for %s: %v", rec.SourceEventID, err)
	}
}

// clientFor: releases go back to the vault chain, everything else acts on
// the pool chain.
func (d *Dispatcher) clientFor(rec *settlement.Record) chain.Client {
	if rec.Kind == settlement.KindRelease {
		return d.source
	}
	return d.dest
}

func backoff(attempts int) time.Duration {
	dur := backoffBase
	for i := 1; i < attempts && dur < backoffCap; i++ {
		dur *= 2
	}
	if dur > backoffCap {
		dur = backoffCap
	}
	return dur
}
