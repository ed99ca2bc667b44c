package repo

import (
	"context"

	"github.com/joripage/utxo-orderbook/pkg/repo/model"
	"gorm.io/gorm"
)

type FillSQLRepo struct {
	db *gorm.DB
}

func NewFillSQLRepo(db *gorm.DB) *FillSQLRepo {
	return &FillSQLRepo{
		db: db,
	}
}

func (r *FillSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *FillSQLRepo) ListByBatch(ctx context.Context, batchIndex uint64) ([]*model.Fill, error) {
	var fills []*model.Fill
	err := r.dbWithContext(ctx).
		Where("batch_index = ?", batchIndex).
		Order("seq").
		Find(&fills).Error
	return fills, err
}

// ListByOwner returns the most recent fills where owner was either side.
func (r *FillSQLRepo) ListByOwner(ctx context.Context, owner string, limit int) ([]*model.Fill, error) {
	var fills []*model.Fill
	err := r.dbWithContext(ctx).
		Where("maker = ? OR taker = ?", owner, owner).
		Order("batch_index DESC, seq").
		Limit(limit).
		Find(&fills).Error
	return fills, err
}
