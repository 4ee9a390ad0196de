package chain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	// EventLocked: collateral locked in the source-chain vault.
	EventLocked EventType = "locked"
	// EventPaidBack: borrowed asset returned to the destination-chain pool.
	EventPaidBack EventType = "paid_back"
	// EventUnknown: topic we do not handle; watchers skip these.
	EventUnknown EventType = "unknown"
)

// Event is the canonical form of an on-chain contract event, already parsed
// out of whatever wire encoding the chain uses.
type Event struct {
	Type       EventType
	ID         string // globally unique per chain
	Chain      string
	TxRef      string
	Amount     decimal.Decimal
	From       string // address on the emitting chain
	To         string // counterpart address on the other chain
	LoanRef    string // optional memo linking a payback to a loan
	Cursor     uint64 // ledger/block position, monotonic per chain
	ObservedAt time.Time
}

// Client is the opaque capability a chain RPC integration must provide.
// Implementations live outside this module's scope; the in-memory adapter
// under internal/adapter/chain serves dev mode and tests.
type Client interface {
	Name() string

	// QueryEvents returns events strictly after the given cursor, in ledger
	// order, plus the new cursor. An empty window returns the cursor
	// unchanged.
	QueryEvents(ctx context.Context, afterCursor uint64, limit int) ([]Event, uint64, error)

	// SubmitTransfer submits a value transfer and returns the tx reference.
	// The transfer is not final until WaitForFinality returns nil.
	SubmitTransfer(ctx context.Context, to string, amount decimal.Decimal, memo string) (string, error)

	// WaitForFinality blocks until the given tx is irreversible or the
	// context is cancelled.
	WaitForFinality(ctx context.Context, txRef string) error

	GetBalance(ctx context.Context, addr string) (decimal.Decimal, error)
}

// Errors a Client may return; the settlement dispatcher classifies on these.
var (
	ErrUnavailable           = errors.New("chain rpc unavailable")
	ErrMalformedAddress      = errors.New("malformed destination address")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrTxNotFound            = errors.New("transaction not found")
)
