package postgres

import (
	"context"
	"time"

	"stockstream/pkg/storage"

	"gorm.io/gorm/clause"
)

var timestampColumn = clause.Column{Name: "timestamp"}

func (p *PostgresClient) Insert(ctx context.Context, s storage.PriceSample) error {
	if err := p.DB.WithContext(ctx).Create(ToSampleRecord(s)).Error; err != nil {
		return storage.Unavailable("insert sample", err)
	}
	return nil
}

func (p *PostgresClient) QueryRecent(ctx context.Context, assetType storage.AssetType, since time.Time,
	limit int, order storage.SortOrder) ([]storage.PriceSample, error) {
	tx := p.DB.WithContext(ctx).
		Where("asset_type = ?", string(assetType)).
		Where(clause.Gte{Column: timestampColumn, Value: since.UTC()}).
		Order(clause.OrderByColumn{Column: timestampColumn, Desc: order == storage.Descending}).
		Order("id")

	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var records []SampleRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, storage.Unavailable("query recent samples", err)
	}

	out := make([]storage.PriceSample, 0, len(records))
	for _, r := range records {
		out = append(out, r.PriceSample())
	}
	return out, nil
}

func (p *PostgresClient) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where(clause.Lt{Column: timestampColumn, Value: cutoff.UTC()}).
		Delete(&SampleRecord{})
	if tx.Error != nil {
		return 0, storage.Unavailable("purge samples", tx.Error)
	}
	return tx.RowsAffected, nil
}
