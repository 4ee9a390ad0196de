package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

type Kind string

const (
	// KindLock: a source-chain lock that releases borrowed funds on the
	// destination chain and originates a loan.
	KindLock Kind = "lock"
	// KindPayback: a destination-chain repayment flowing back.
	KindPayback Kind = "payback"
	// KindRelease: an internally triggered collateral unlock (repay or
	// liquidation) on the source chain.
	KindRelease Kind = "release"
)

// Record tracks the destination-side effect of one source-side event.
// Exactly one row exists per SourceEventID (unique index); that constraint
// plus the forward-only status machine is what turns at-least-once event
// delivery into an at-most-once side effect.
type Record struct {
	ID uint64 `gorm:"primaryKey;column:id" json:"-"`

	SourceEventID string `gorm:"size:96;uniqueIndex:ux_settlements_source_event" json:"source_event_id"`
	SourceChain   string `gorm:"size:32" json:"source_chain"`
	SourceTxRef   string `gorm:"size:128" json:"source_tx_ref"`
	Kind          Kind   `gorm:"size:16" json:"kind"`

	Amount      decimal.Decimal `gorm:"type:decimal(30,10)" json:"amount"`
	SourceAddr  string          `gorm:"size:64" json:"source_address"`
	DestAddr    string          `gorm:"size:64" json:"dest_address"`
	LoanRef     string          `gorm:"size:32;index:idx_settlements_loan" json:"loan_ref"`
	LedgerCursor uint64         `json:"ledger_cursor"`

	// DestAmount is what actually moves on the destination side (for a
	// lock: collateral value x tier LTV). Persisted at submit time so a
	// restart between submitted and confirmed never recomputes it.
	DestAmount decimal.Decimal `gorm:"type:decimal(30,10)" json:"dest_amount"`

	Status        Status    `gorm:"size:16;index:idx_settlements_status;default:'pending'" json:"status"`
	DestTxRef     string    `gorm:"size:128" json:"dest_tx_ref"`
	Attempts      int       `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `gorm:"type:text" json:"last_error,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Record) TableName() string { return "settlement_records" }

// Credit is a destination-side payment that matched no loan: the value is
// credited to the payer's ledger balance instead of rejected. Unique per
// source event, same dedup rule as settlements.
type Credit struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	SourceEventID string          `gorm:"size:96;uniqueIndex:ux_credits_source_event" json:"source_event_id"`
	Address       string          `gorm:"size:64;index:idx_credits_address" json:"address"`
	Asset         string          `gorm:"size:16" json:"asset"`
	Amount        decimal.Decimal `gorm:"type:decimal(30,10)" json:"amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Credit) TableName() string { return "ledger_credits" }
