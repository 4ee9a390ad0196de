package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/domain/chain"
)

// Memory is an in-process chain.Client: a scripted ledger of events plus a
// recording sink for transfers. It backs dev mode and every test that
// would otherwise need a live RPC endpoint.
type Memory struct {
	name string

	mu        sync.Mutex
	events    []chain.Event
	transfers []Transfer
	balances  map[string]decimal.Decimal
	nextTx    int

	// failure injection
	submitErrs   []error
	finalityErrs []error
	queryErr     error
}

// Transfer is one recorded SubmitTransfer call.
type Transfer struct {
	To     string
	Amount decimal.Decimal
	Memo   string
	TxRef  string
}

func NewMemory(name string) *Memory {
	return &Memory{name: name, balances: map[string]decimal.Decimal{}}
}

func (m *Memory) Name() string { return m.name }

// Append adds an event to the scripted ledger; its cursor is its position.
func (m *Memory) Append(ev chain.Event) chain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Chain = m.name
	ev.Cursor = uint64(len(m.events) + 1)
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	return ev
}

// FailNextSubmit queues errors returned by upcoming SubmitTransfer calls.
func (m *Memory) FailNextSubmit(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErrs = append(m.submitErrs, errs...)
}

// FailNextFinality queues errors returned by upcoming WaitForFinality calls.
func (m *Memory) FailNextFinality(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalityErrs = append(m.finalityErrs, errs...)
}

// FailQueries makes QueryEvents return err until cleared with nil.
func (m *Memory) FailQueries(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}

// Transfers returns a copy of everything submitted so far.
func (m *Memory) Transfers() []Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

func (m *Memory) SetBalance(addr string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] = amount
}

func (m *Memory) QueryEvents(ctx context.Context, afterCursor uint64, limit int) ([]chain.Event, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, afterCursor, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, afterCursor, m.queryErr
	}
	var out []chain.Event
	cursor := afterCursor
	for _, ev := range m.events {
		if ev.Cursor <= afterCursor {
			continue
		}
		out = append(out, ev)
		cursor = ev.Cursor
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, cursor, nil
}

func (m *Memory) SubmitTransfer(ctx context.Context, to string, amount decimal.Decimal, memo string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.submitErrs) > 0 {
		err := m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	m.nextTx++
	txRef := fmt.Sprintf("%s-tx-%04d", m.name, m.nextTx)
	m.transfers = append(m.transfers, Transfer{To: to, Amount: amount, Memo: memo, TxRef: txRef})
	return txRef, nil
}

func (m *Memory) WaitForFinality(ctx context.Context, txRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finalityErrs) > 0 {
		err := m.finalityErrs[0]
		m.finalityErrs = m.finalityErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, t := range m.transfers {
		if t.TxRef == txRef {
			return nil
		}
	}
	return chain.ErrTxNotFound
}

func (m *Memory) GetBalance(ctx context.Context, addr string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[addr]; ok {
		return b, nil
	}
	return decimal.Zero, nil
}
