package settlement

import (
	"context"
	"errors"

	"polar-bridge-relayer/internal/domain/chain"
)

var (
	ErrNotFound  = errors.New("settlement record not found")
	ErrDuplicate = errors.New("settlement record already exists for source event")
	// ErrExhausted: transient failures hit the attempt ceiling; the record
	// is parked as failed for an operator to requeue.
	ErrExhausted = errors.New("settlement retry attempts exhausted")
	// ErrNotRequeueable: requeue is only valid on failed records.
	ErrNotRequeueable = errors.New("only failed settlements can be requeued")
)

// Class buckets a destination-action failure. The dispatcher retries
// Transient with backoff, parks Permanent immediately, and treats everything
// it cannot identify as Transient so nothing is silently dropped.
type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

// Classify maps chain-client errors onto retry semantics. Malformed
// addresses can never succeed. Insufficient pool liquidity usually resolves
// itself, so it retries until the attempt ceiling converts it to failed.
func Classify(err error) Class {
	switch {
	case errors.Is(err, chain.ErrMalformedAddress):
		return ClassPermanent
	case errors.Is(err, chain.ErrInsufficientLiquidity),
		errors.Is(err, chain.ErrUnavailable),
		errors.Is(err, chain.ErrTxNotFound),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	default:
		return ClassTransient
	}
}
