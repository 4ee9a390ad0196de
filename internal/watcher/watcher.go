package watcher

import (
	"context"
	"errors"
	"log"
	"time"

	"polar-bridge-relayer/internal/domain/chain"
	"polar-bridge-relayer/internal/domain/settlement"
)

// Dispatcher consumes canonical events; duplicates are its problem, the
// watcher only promises at-least-once delivery in ledger order.
type Dispatcher interface {
	Settle(ctx context.Context, ev chain.Event) (*settlement.Record, error)
}

// SettlementReader lets the watcher skip events the store already knows,
// so redelivery after a crash does not spam the dispatcher.
type SettlementReader interface {
	GetBySourceEventID(ctx context.Context, eventID string) (*settlement.Record, error)
}

// Watcher polls one chain for contract events past a persisted cursor and
// feeds them to the dispatcher. The poll loop is strictly sequential: the
// next tick waits for the previous poll, so polls of the same chain never
// overlap.
type Watcher struct {
	client      chain.Client
	cursors     chain.CursorRepository
	dispatcher  Dispatcher
	settlements SettlementReader

	interval  time.Duration
	batchSize int

	// recently-seen ring bounds in-memory dedup; the settlement store is
	// the durable check behind it.
	seen     map[string]struct{}
	seenRing []string
	seenCap  int
}

func New(client chain.Client, cursors chain.CursorRepository, d Dispatcher, settlements SettlementReader, interval time.Duration, batchSize int) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Watcher{
		client:      client,
		cursors:     cursors,
		dispatcher:  d,
		settlements: settlements,
		interval:    interval,
		batchSize:   batchSize,
		seen:        map[string]struct{}{},
		seenCap:     1000,
	}
}

// Run polls until the context is cancelled. A poll error is transient by
// definition here: the cursor stays put and the next tick retries.
func (w *Watcher) Run(ctx context.Context) {
	log.Printf("watcher[%s]: started, interval=%s", w.client.Name(), w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.PollOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("watcher[%s]: poll: %v", w.client.Name(), err)
		}
		select {
		case <-ctx.Done():
			log.Printf("watcher[%s]: stopped", w.client.Name())
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches one window of events and processes them in ledger
// order. The cursor is persisted only after every delivered event has been
// handed to the dispatcher: a crash in between causes redelivery, never
// loss. Dedup state is not advanced for events we ignore.
func (w *Watcher) PollOnce(ctx context.Context) error {
	after, err := w.cursors.Get(ctx, w.client.Name())
	if err != nil {
		// store trouble is fatal for this tick; advancing anything now
		// could skip work after recovery
		return err
	}

	events, newCursor, err := w.client.QueryEvents(ctx, after, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 && newCursor == after {
		return nil
	}

	for i := range events {
		ev := events[i]
		if ev.Type == chain.EventUnknown {
			continue
		}
		if w.isDuplicate(ctx, ev.ID) {
			continue
		}
		if _, err := w.dispatcher.Settle(ctx, ev); err != nil {
			// leave the cursor behind this event so it is redelivered
			log.Printf("watcher[%s]: settle %s: %v", w.client.Name(), ev.ID, err)
			if i > 0 {
				_ = w.cursors.Save(ctx, w.client.Name(), events[i-1].Cursor)
			}
			return err
		}
		w.markSeen(ev.ID)
	}

	return w.cursors.Save(ctx, w.client.Name(), newCursor)
}

func (w *Watcher) isDuplicate(ctx context.Context, eventID string) bool {
	if _, ok := w.seen[eventID]; ok {
		return true
	}
	// durable check: a settlement record means this event already reached
	// the dispatcher in some earlier life
	if _, err := w.settlements.GetBySourceEventID(ctx, eventID); err == nil {
		w.markSeen(eventID)
		return true
	} else if !errors.Is(err, settlement.ErrNotFound) {
		// store unreachable: claim duplicate=false and let the dispatcher's
		// unique constraint arbitrate
		return false
	}
	return false
}

func (w *Watcher) markSeen(eventID string) {
	if _, ok := w.seen[eventID]; ok {
		return
	}
	w.seen[eventID] = struct{}{}
	w.seenRing = append(w.seenRing, eventID)
	if len(w.seenRing) > w.seenCap {
		evict := w.seenRing[0]
		w.seenRing = w.seenRing[1:]
		delete(w.seen, evict)
	}
}
