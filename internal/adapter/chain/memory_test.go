package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"polar-bridge-relayer/internal/domain/chain"
)

func TestQueryEvents_Windowing(t *testing.T) {
	m := NewMemory("stellar")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.Append(chain.Event{Type: chain.EventLocked, ID: "evt-" + string(rune('a'+i))})
	}

	events, cursor, err := m.QueryEvents(ctx, 0, 2)
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(events) != 2 || cursor != 2 {
		t.Fatalf("window = %d events, cursor %d", len(events), cursor)
	}
	if events[0].Chain != "stellar" || events[0].Cursor != 1 {
		t.Fatalf("first event = %+v", events[0])
	}

	events, cursor, err = m.QueryEvents(ctx, cursor, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || cursor != 5 {
		t.Fatalf("remainder = %d events, cursor %d", len(events), cursor)
	}

	// drained window leaves the cursor where it is
	events, cursor, err = m.QueryEvents(ctx, cursor, 100)
	if err != nil || len(events) != 0 || cursor != 5 {
		t.Fatalf("drained query = %d events cursor %d err %v", len(events), cursor, err)
	}
}

func TestSubmitTransfer_RecordsAndNumbers(t *testing.T) {
	m := NewMemory("paseo")
	ctx := context.Background()

	ref1, err := m.SubmitTransfer(ctx, "5DEST000000000000000000000000001", decimal.NewFromInt(750), "loan:abc")
	if err != nil {
		t.Fatalf("SubmitTransfer: %v", err)
	}
	ref2, _ := m.SubmitTransfer(ctx, "5DEST000000000000000000000000001", decimal.NewFromInt(10), "")
	if ref1 == ref2 {
		t.Fatalf("tx refs collide: %s", ref1)
	}

	got := m.Transfers()
	if len(got) != 2 {
		t.Fatalf("transfers = %d, want 2", len(got))
	}
	if got[0].Memo != "loan:abc" || !got[0].Amount.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("first transfer = %+v", got[0])
	}

	if err := m.WaitForFinality(ctx, ref1); err != nil {
		t.Fatalf("WaitForFinality: %v", err)
	}
	if err := m.WaitForFinality(ctx, "paseo-tx-9999"); !errors.Is(err, chain.ErrTxNotFound) {
		t.Fatalf("unknown tx err = %v, want ErrTxNotFound", err)
	}
}

func TestFailureInjection(t *testing.T) {
	m := NewMemory("paseo")
	ctx := context.Background()

	m.FailNextSubmit(chain.ErrUnavailable)
	if _, err := m.SubmitTransfer(ctx, "addr-000000000000000000000000000001", decimal.NewFromInt(1), ""); !errors.Is(err, chain.ErrUnavailable) {
		t.Fatalf("err = %v, want the queued error", err)
	}
	// the queue drains; the next submit goes through
	if _, err := m.SubmitTransfer(ctx, "addr-000000000000000000000000000001", decimal.NewFromInt(1), ""); err != nil {
		t.Fatalf("post-drain submit: %v", err)
	}

	ref, _ := m.SubmitTransfer(ctx, "addr-000000000000000000000000000001", decimal.NewFromInt(1), "")
	m.FailNextFinality(chain.ErrUnavailable)
	if err := m.WaitForFinality(ctx, ref); !errors.Is(err, chain.ErrUnavailable) {
		t.Fatalf("finality err = %v", err)
	}
	if err := m.WaitForFinality(ctx, ref); err != nil {
		t.Fatalf("finality after drain: %v", err)
	}

	m.FailQueries(chain.ErrUnavailable)
	if _, _, err := m.QueryEvents(ctx, 0, 10); !errors.Is(err, chain.ErrUnavailable) {
		t.Fatalf("query err = %v", err)
	}
	m.FailQueries(nil)
	if _, _, err := m.QueryEvents(ctx, 0, 10); err != nil {
		t.Fatalf("query after clear: %v", err)
	}
}

func TestGetBalance(t *testing.T) {
	m := NewMemory("stellar")
	ctx := context.Background()

	b, err := m.GetBalance(ctx, "GBORROWER00000000000000000000001")
	if err != nil || !b.IsZero() {
		t.Fatalf("unseeded balance = %s err %v", b, err)
	}
	m.SetBalance("GBORROWER00000000000000000000001", decimal.NewFromInt(900))
	if b, _ := m.GetBalance(ctx, "GBORROWER00000000000000000000001"); !b.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("balance = %s, want 900", b)
	}
}
