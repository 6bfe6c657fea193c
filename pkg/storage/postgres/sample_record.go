package postgres

import (
	"time"

	"stockstream/pkg/storage"
)

// SampleRecord is the row layout of stock_crypto_prices. The three filter
// columns are indexed independently and nothing is unique, so a retried
// round may store duplicates.
type SampleRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol    string    `gorm:"type:text;not null;index:idx_prices_symbol"`
	AssetType string    `gorm:"type:varchar(16);not null;index:idx_prices_asset_type"`
	Timestamp time.Time `gorm:"not null;index:idx_prices_timestamp,sort:desc"`

	Price  float64 `gorm:"type:double precision;not null"`
	Volume float64 `gorm:"type:double precision;not null;default:0"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SampleRecord) TableName() string {
	return "stock_crypto_prices"
}

// ToSampleRecord converts a PriceSample into a row for insertion.
func ToSampleRecord(s storage.PriceSample) *SampleRecord {
	return &SampleRecord{
		Symbol:    s.Symbol,
		AssetType: string(s.AssetType),
		Timestamp: s.Timestamp.UTC(),
		Price:     s.Price,
		Volume:    s.Volume,
	}
}

// PriceSample converts the row back into the domain type.
func (r SampleRecord) PriceSample() storage.PriceSample {
	return storage.PriceSample{
		Symbol:    r.Symbol,
		AssetType: storage.AssetType(r.AssetType),
		Price:     r.Price,
		Volume:    r.Volume,
		Timestamp: r.Timestamp.UTC(),
	}
}
