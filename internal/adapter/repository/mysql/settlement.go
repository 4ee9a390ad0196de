package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"polar-bridge-relayer/internal/domain/settlement"
)

type SettlementRepository struct{ db *gorm.DB }

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, rec *settlement.Record) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if isDuplicateKey(err) {
		return settlement.ErrDuplicate
	}
	return err
}

func (r *SettlementRepository) GetBySourceEventID(ctx context.Context, eventID string) (*settlement.Record, error) {
	var out settlement.Record
	res := r.db.WithContext(ctx).Where("source_event_id = ?", eventID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrNotFound
	}
	return &out, res.Error
}

func (r *SettlementRepository) Save(ctx context.Context, rec *settlement.Record) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *SettlementRepository) ListByStatus(ctx context.Context, status settlement.Status) ([]settlement.Record, error) {
	var out []settlement.Record
	res := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

func (r *SettlementRepository) CreateCredit(ctx context.Context, c *settlement.Credit) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if isDuplicateKey(err) {
		return settlement.ErrDuplicate
	}
	return err
}
