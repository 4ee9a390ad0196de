package settlement

import "context"

type Repository interface {
	// Create fails with ErrDuplicate when a record for the same source
	// event already exists.
	Create(ctx context.Context, r *Record) error
	GetBySourceEventID(ctx context.Context, eventID string) (*Record, error)
	Save(ctx context.Context, r *Record) error
	ListByStatus(ctx context.Context, status Status) ([]Record, error)

	CreateCredit(ctx context.Context, c *Credit) error
}
