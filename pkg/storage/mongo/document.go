package mongo

import (
	"time"

	"stockstream/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PriceDocument is one sample in the stock_crypto_prices collection.
type PriceDocument struct {
	Id        primitive.ObjectID `bson:"_id,omitempty"`
	Symbol    string             `bson:"symbol"`
	Type      string             `bson:"type"`
	Price     float64            `bson:"price"`
	Volume    float64            `bson:"volume"`
	Timestamp time.Time          `bson:"timestamp"`
}

func toDocument(s storage.PriceSample) PriceDocument {
	return PriceDocument{
		Symbol:    s.Symbol,
		Type:      string(s.AssetType),
		Price:     s.Price,
		Volume:    s.Volume,
		Timestamp: s.Timestamp.UTC(),
	}
}

func (d PriceDocument) sample() storage.PriceSample {
	return storage.PriceSample{
		Symbol:    d.Symbol,
		AssetType: storage.AssetType(d.Type),
		Price:     d.Price,
		Volume:    d.Volume,
		Timestamp: d.Timestamp.UTC(),
	}
}
