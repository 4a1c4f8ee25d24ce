package repo

import (
	"context"

	"github.com/joripage/matching-engine/pkg/oms/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TradeSQLRepo struct {
	db *gorm.DB
}

func NewTradeSQLRepo(db *gorm.DB) *TradeSQLRepo {
	return &TradeSQLRepo{
		db: db,
	}
}

func (r *TradeSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *TradeSQLRepo) BulkCreate(ctx context.Context, records []*model.Trade) error {
	if len(records) == 0 {
		return nil
	}
	return r.dbWithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(records, 500).Error
}

// ListByAccount returns the newest trades first. limit <= 0 means all.
func (r *TradeSQLRepo) ListByAccount(ctx context.Context, account string, limit int) ([]*model.Trade, error) {
	q := r.dbWithContext(ctx).Order("id DESC")
	if account != "" {
		q = q.Where("buyer = ? OR seller = ?", account, account)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*model.Trade
	return out, q.Find(&out).Error
}
