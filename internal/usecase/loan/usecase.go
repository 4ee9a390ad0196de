package loan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/config"
	domain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/oracle"
	"polar-bridge-relayer/internal/domain/settlement"
	"polar-bridge-relayer/internal/domain/uow"
	"polar-bridge-relayer/pkg/id"
)

// CollateralReleaser is the dispatcher's public contract as seen from the
// ledger: at-most-once movement of locked collateral per (loan, purpose).
// The ledger never talks to a chain client directly.
type CollateralReleaser interface {
	ReleaseCollateral(ctx context.Context, l *domain.Loan, to string, amount decimal.Decimal, purpose string) error
}

// SettlementReader gives the ledger read-only sight of settlement records;
// mutation stays with the dispatcher.
type SettlementReader interface {
	GetBySourceEventID(ctx context.Context, eventID string) (*settlement.Record, error)
}

// Usecase is the loan ledger: it exclusively owns Loan mutation and the
// collateralization, interest and liquidation invariants.
type Usecase struct {
	cfg         *config.Config
	uow         uow.UnitOfWork
	loans       domain.Repository
	settlements SettlementReader
	prices      oracle.Oracle
	releaser    CollateralReleaser
	nowFn       func() time.Time
}

func NewUsecase(cfg *config.Config, tx uow.UnitOfWork, loans domain.Repository, settlements SettlementReader, prices oracle.Oracle) *Usecase {
	return &Usecase{
		cfg:         cfg,
		uow:         tx,
		loans:       loans,
		settlements: settlements,
		prices:      prices,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SetReleaser wires the dispatcher in after construction; the dispatcher
// needs the ledger first, so the dependency is closed here.
func (u *Usecase) SetReleaser(r CollateralReleaser) { u.releaser = r }

// SetNow overrides the clock; tests only.
func (u *Usecase) SetNow(fn func() time.Time) { u.nowFn = fn }

func (u *Usecase) collateralPrice(ctx context.Context) (oracle.Price, error) {
	return u.prices.GetPrice(ctx, u.cfg.CollateralAsset)
}

// Originate opens a loan against a confirmed collateral lock. Idempotent per
// lock event: a second call for the same event returns the existing loan.
// BorrowedAmount zero means "borrow the tier maximum against the lock".
func (u *Usecase) Originate(ctx context.Context, in OriginateInput) (*LoanDTO, error) {
	if in.Borrower == "" || in.LockEventID == "" {
		return nil, errors.New("borrower and lock_event_id are required")
	}
	if in.CollateralAmount.Sign() <= 0 {
		return nil, errors.New("collateral amount must be positive")
	}
	if in.DurationDays <= 0 {
		in.DurationDays = 30
	}

	// Collateral must be provably locked before any loan exists.
	rec, err := u.settlements.GetBySourceEventID(ctx, in.LockEventID)
	if err != nil {
		return nil, fmt.Errorf("lock event %s: %w", in.LockEventID, err)
	}
	if rec.Status != settlement.StatusConfirmed {
		return nil, fmt.Errorf("lock event %s not confirmed (status %s)", in.LockEventID, rec.Status)
	}

	if existing, err := u.loans.GetByLockEventID(ctx, in.LockEventID); err == nil {
		return u.toDTO(existing), nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	price, err := u.collateralPrice(ctx)
	if err != nil {
		return nil, err
	}

	tier := u.cfg.TierFor(in.DurationDays)
	collateralValue := in.CollateralAmount.Mul(price.Value)
	borrowed := in.BorrowedAmount
	if borrowed.Sign() == 0 {
		borrowed = collateralValue.Mul(decimal.NewFromFloat(tier.MaxLtv)).Round(10)
	}
	if borrowed.Sign() <= 0 {
		return nil, errors.New("borrowed amount must be positive")
	}
	if collateralValue.Sign() <= 0 {
		return nil, errors.New("collateral value must be positive")
	}
	ltv := borrowed.Div(collateralValue)
	if ltv.GreaterThan(decimal.NewFromFloat(tier.MaxLtv)) {
		return nil, domain.ErrInvalidLtv
	}

	now := u.nowFn()
	l := &domain.Loan{
		LoanID:                 id.NewID32(),
		Borrower:               in.Borrower,
		LockEventID:            in.LockEventID,
		CollateralAsset:        u.cfg.CollateralAsset,
		CollateralAmount:       in.CollateralAmount,
		CollateralValueAtStart: collateralValue,
		BorrowedAsset:          u.cfg.BorrowedAsset,
		BorrowedAmount:         borrowed,
		OriginationTime:        now,
		DurationDays:           in.DurationDays,
		InterestRateAPY:        tier.APY,
		Deadline:               now.AddDate(0, 0, in.DurationDays),
		Status:                 domain.StatusActive,
		AccruedInterest:        decimal.Zero,
		LateFee:                decimal.Zero,
		HealthFactor:           HealthFactor(collateralValue, borrowed, u.cfg.LiquidationThreshold),
	}
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		return r.Loans.Create(ctx, l)
	})
	if err != nil {
		// Lost a race on the lock-event unique index: someone else
		// originated this loan first, return theirs.
		if existing, getErr := u.loans.GetByLockEventID(ctx, in.LockEventID); getErr == nil {
			return u.toDTO(existing), nil
		}
		return nil, err
	}
	log.Printf("ledger: originated loan %s borrower=%s collateral=%s %s borrowed=%s %s apy=%.4f",
		l.LoanID, l.Borrower, l.CollateralAmount, l.CollateralAsset, l.BorrowedAmount, l.BorrowedAsset, l.InterestRateAPY)
	return u.toDTO(l), nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return u.toDTO(l), nil
}

func (u *Usecase) ListByBorrower(ctx context.Context, borrower string) ([]LoanDTO, error) {
	loans, err := u.loans.ListByBorrower(ctx, borrower)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(loans))
	for i := range loans {
		out = append(out, *u.toDTO(&loans[i]))
	}
	return out, nil
}

// LiquidationEvents returns the audit trail of forced closures for a loan.
func (u *Usecase) LiquidationEvents(ctx context.Context, loanID string) ([]domain.LiquidationEvent, error) {
	if _, err := u.loans.GetByLoanID(ctx, loanID); err != nil {
		return nil, err
	}
	var out []domain.LiquidationEvent
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var listErr error
		out, listErr = r.LiquidationEvents.ListByLoanID(ctx, loanID)
		return listErr
	})
	return out, err
}

// Summary aggregates a borrower's open exposure.
func (u *Usecase) Summary(ctx context.Context, borrower string) (*SummaryDTO, error) {
	loans, err := u.loans.ListByBorrower(ctx, borrower)
	if err != nil {
		return nil, err
	}
	s := &SummaryDTO{Borrower: borrower}
	for i := range loans {
		l := &loans[i]
		s.TotalLoans++
		if l.Status.Terminal() {
			continue
		}
		s.OpenLoans++
		s.OutstandingDebt = s.OutstandingDebt.Add(l.TotalDebt())
		s.CollateralLocked = s.CollateralLocked.Add(l.CollateralAmount)
	}
	return s, nil
}

// AccrueOneDay applies interest (and past the deadline, one day of late fee)
// for a single calendar date. Idempotent per (loan, date): the accrual
// checkpoint only moves forward and dates at or before it are no-ops.
func (u *Usecase) AccrueOneDay(ctx context.Context, loanID string, date time.Time) error {
	date = dateOnly(date)
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.Status.Terminal() {
			return nil
		}
		origination := dateOnly(l.OriginationTime)
		if !date.After(origination) {
			return nil
		}
		cp, err := r.Checkpoints.Get(ctx, l.ID)
		switch {
		case err == nil:
			if !date.After(dateOnly(cp.LastAccrualDate)) {
				return nil // already applied
			}
		case errors.Is(err, domain.ErrNotFound):
			// first accrual for this loan
		default:
			return err
		}

		l.AccruedInterest = l.AccruedInterest.Add(DailyInterest(l.BorrowedAmount, l.InterestRateAPY))

		deadline := dateOnly(l.Deadline)
		if date.After(deadline) {
			daysLate := int(date.Sub(deadline).Hours() / 24)
			if daysLate <= u.cfg.MaxLateDays {
				l.LateFee = l.LateFee.Add(
					LateFeeFor(l.DebtAtDeadline(), u.cfg.LateFeePerDay, 1, u.cfg.MaxLateDays))
			}
			if l.Status == domain.StatusActive {
				l.Status = domain.StatusOverdue
			}
			if daysLate >= u.cfg.MaxLateDays {
				l.ForceLiquidate = true
			}
		}

		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		return r.Checkpoints.Advance(ctx, l.ID, date)
	})
}

// Repay settles the full outstanding debt and releases the collateral back
// to the borrower. Partial repayments are rejected.
func (u *Usecase) Repay(ctx context.Context, loanID string, amountPaid decimal.Decimal) (*RepayDTO, error) {
	if amountPaid.Sign() <= 0 {
		return nil, domain.ErrInsufficientRepayment
	}
	var (
		dto      *RepayDTO
		released domain.Loan
	)
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		debt := l.TotalDebt()
		if amountPaid.LessThan(debt) {
			return fmt.Errorf("%w: need %s, got %s", domain.ErrInsufficientRepayment, debt, amountPaid)
		}
		now := u.nowFn()
		l.Status = domain.StatusRepaid
		l.RepaidAt = &now
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		released = *l
		dto = &RepayDTO{
			LoanID:             l.LoanID,
			Principal:          l.BorrowedAmount,
			Interest:           l.AccruedInterest,
			LateFee:            l.LateFee,
			TotalPaid:          debt,
			CollateralReleased: l.CollateralAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := u.release(ctx, &released, released.Borrower, released.CollateralAmount, "repay"); err != nil {
		// The loan is repaid; the unlock rides its own settlement record
		// and will be retried or surfaced there.
		log.Printf("ledger: collateral release for repaid loan %s pending: %v", released.LoanID, err)
	}
	return dto, nil
}

// AddCollateral tops up the lock to improve the health factor. Debt is
// never reduced here.
func (u *Usecase) AddCollateral(ctx context.Context, loanID string, amount decimal.Decimal) (*LoanDTO, error) {
	if amount.Sign() <= 0 {
		return nil, errors.New("collateral amount must be positive")
	}
	price, err := u.collateralPrice(ctx)
	if err != nil {
		return nil, err
	}
	var out *LoanDTO
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		l.CollateralAmount = l.CollateralAmount.Add(amount)
		l.HealthFactor = HealthFactor(l.CollateralAmount.Mul(price.Value), l.TotalDebt(), u.cfg.LiquidationThreshold)
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		out = u.toDTO(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Liquidate force-closes a position: seizes collateral to cover debt plus
// penalty, returns any remainder to the borrower, and records the audit
// event. The penalty split always sums back to the exact penalty.
func (u *Usecase) Liquidate(ctx context.Context, loanID, reason string) (*LiquidationDTO, error) {
	price, err := u.collateralPrice(ctx)
	if err != nil {
		return nil, err
	}
	var (
		dto    *LiquidationDTO
		closed domain.Loan
	)
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		b := ComputeLiquidation(l.TotalDebt(), l.CollateralAmount, price.Value,
			u.cfg.LiquidationPenalty, u.cfg.ProtocolShare)

		ev := &domain.LiquidationEvent{
			ID:                 newEventID(),
			LoanID:             l.LoanID,
			Reason:             reason,
			TotalDebt:          b.TotalDebt,
			Penalty:            b.Penalty,
			ProtocolCut:        b.ProtocolCut,
			LiquidatorCut:      b.LiquidatorCut,
			CollateralSeized:   b.CollateralSeized,
			CollateralReturned: b.CollateralReturned,
			CollateralPrice:    price.Value,
			HealthFactor:       l.HealthFactor,
		}
		if err := r.LiquidationEvents.Create(ctx, ev); err != nil {
			return err
		}
		now := u.nowFn()
		l.Status = domain.StatusLiquidated
		l.LiquidatedAt = &now
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		closed = *l
		dto = &LiquidationDTO{
			LoanID:             l.LoanID,
			EventID:            ev.ID,
			Reason:             reason,
			TotalDebt:          b.TotalDebt,
			Penalty:            b.Penalty,
			ProtocolCut:        b.ProtocolCut,
			LiquidatorCut:      b.LiquidatorCut,
			CollateralSeized:   b.CollateralSeized,
			CollateralReturned: b.CollateralReturned,
			Shortfall:          b.Shortfall,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dto.CollateralSeized.Sign() > 0 && u.cfg.TreasuryAddress != "" {
		if err := u.release(ctx, &closed, u.cfg.TreasuryAddress, dto.CollateralSeized, "liquidation-seize"); err != nil {
			log.Printf("ledger: seize release for loan %s pending: %v", closed.LoanID, err)
		}
	}
	if dto.CollateralReturned.Sign() > 0 {
		if err := u.release(ctx, &closed, closed.Borrower, dto.CollateralReturned, "liquidation-return"); err != nil {
			log.Printf("ledger: remainder release for loan %s pending: %v", closed.LoanID, err)
		}
	}
	log.Printf("ledger: liquidated loan %s reason=%s debt=%s penalty=%s seized=%s returned=%s",
		closed.LoanID, reason, dto.TotalDebt, dto.Penalty, dto.CollateralSeized, dto.CollateralReturned)
	return dto, nil
}

// RefreshHealth recomputes and stores the health factor from the current
// price; called by the liquidation scanner so stored values never lag the
// oracle by more than one scan.
func (u *Usecase) RefreshHealth(ctx context.Context, l *domain.Loan, price decimal.Decimal) (float64, error) {
	hf := HealthFactor(l.CollateralAmount.Mul(price), l.TotalDebt(), u.cfg.LiquidationThreshold)
	if hf == l.HealthFactor {
		return hf, nil
	}
	l.HealthFactor = hf
	if err := u.loans.Save(ctx, l); err != nil {
		if errors.Is(err, domain.ErrStaleVersion) {
			return hf, nil // another writer got there; theirs is newer
		}
		return hf, err
	}
	return hf, nil
}

func (u *Usecase) release(ctx context.Context, l *domain.Loan, to string, amount decimal.Decimal, purpose string) error {
	if u.releaser == nil {
		return errors.New("collateral releaser not wired")
	}
	return u.releaser.ReleaseCollateral(ctx, l, to, amount, purpose)
}

func newEventID() string { return id.NewUUID() }
