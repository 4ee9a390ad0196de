package chain

import (
	"context"
	"time"
)

// Cursor is the persisted poll position of one watcher. A watcher never
// advances its stored cursor past events it has not finished processing.
type Cursor struct {
	Chain     string    `gorm:"primaryKey;size:32" json:"chain"`
	Position  uint64    `gorm:"not null;default:0" json:"position"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Cursor) TableName() string { return "chain_cursors" }

type CursorRepository interface {
	// Get returns position 0 for a chain never seen before.
	Get(ctx context.Context, chain string) (uint64, error)
	Save(ctx context.Context, chain string, position uint64) error
}
