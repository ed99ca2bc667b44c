package repo

import (
	"context"
	"errors"

	"github.com/joripage/utxo-orderbook/pkg/repo/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

type BatchSQLRepo struct {
	db *gorm.DB
}

func NewBatchSQLRepo(db *gorm.DB) *BatchSQLRepo {
	return &BatchSQLRepo{
		db: db,
	}
}

func (r *BatchSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *BatchSQLRepo) Create(ctx context.Context, batch *model.Batch, fills []*model.Fill) error {
	return r.dbWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(batch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || len(fills) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(fills, 500).Error
	})
}

func (r *BatchSQLRepo) Get(ctx context.Context, batchIndex uint64) (*model.Batch, error) {
	b := &model.Batch{}
	err := r.dbWithContext(ctx).Where("batch_index = ?", batchIndex).Take(b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *BatchSQLRepo) Latest(ctx context.Context) (*model.Batch, error) {
	b := &model.Batch{}
	err := r.dbWithContext(ctx).Order("batch_index DESC").Take(b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}
