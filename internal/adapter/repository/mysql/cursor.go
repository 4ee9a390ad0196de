package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	chainDomain "polar-bridge-relayer/internal/domain/chain"
)

type CursorRepository struct{ db *gorm.DB }

func NewCursorRepository(db *gorm.DB) *CursorRepository { return &CursorRepository{db: db} }

func (r *CursorRepository) Get(ctx context.Context, chain string) (uint64, error) {
	var out chainDomain.Cursor
	res := r.db.WithContext(ctx).Where("chain = ?", chain).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return out.Position, res.Error
}

func (r *CursorRepository) Save(ctx context.Context, chain string, position uint64) error {
	cur := chainDomain.Cursor{Chain: chain, Position: position}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&cur).Error
}
