// Package mongo keeps price samples in a MongoDB collection laid out as
// stockstream.stock_crypto_prices.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockstream/config"
	"stockstream/pkg/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Open connects to cfg.URI, verifies the connection and ensures the indexes.
func Open(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, storage.Unavailable("connect", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:     client,
		collection: db.Collection(cfg.Collection),
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := ensureValidator(ctx, db, cfg.Collection); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// namespaceNotFound is the server error code collMod returns for a missing collection.
const namespaceNotFound = 26

// sampleValidator is the $jsonSchema every stored document must satisfy.
func sampleValidator() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"symbol", "price", "timestamp", "type"},
			"properties": bson.M{
				"symbol":    bson.M{"bsonType": "string", "description": "Stock/Crypto symbol - required"},
				"price":     bson.M{"bsonType": "double", "description": "Current price - required"},
				"timestamp": bson.M{"bsonType": "date", "description": "Timestamp of the price - required"},
				"type":      bson.M{"enum": bson.A{string(storage.AssetStock), string(storage.AssetCrypto)}, "description": "Type of asset - required"},
				"volume":    bson.M{"bsonType": "double", "description": "Trading volume - optional"},
			},
		},
	}
}

// ensureValidator installs the schema on an existing collection, creating
// the collection when it does not exist yet.
func ensureValidator(ctx context.Context, db *mongo.Database, name string) error {
	err := db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: sampleValidator()},
	}).Err()
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceNotFound {
		return fmt.Errorf("set validator on %s: %w", name, err)
	}

	opts := options.CreateCollection().SetValidator(sampleValidator())
	if err := db.CreateCollection(ctx, name, opts); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "symbol", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, smp storage.PriceSample) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(smp)); err != nil {
		return storage.Unavailable("insert sample", err)
	}
	return nil
}

func (s *Store) QueryRecent(ctx context.Context, assetType storage.AssetType, since time.Time,
	limit int, order storage.SortOrder) ([]storage.PriceSample, error) {
	direction := -1
	if order == storage.Ascending {
		direction = 1
	}

	filter := bson.D{
		{Key: "type", Value: string(assetType)},
		{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: direction},
		{Key: "_id", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storage.Unavailable("query recent samples", err)
	}
	defer cur.Close(ctx)

	var docs []PriceDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storage.Unavailable("decode samples", err)
	}

	out := make([]storage.PriceSample, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.sample())
	}
	return out, nil
}

func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.D{
		{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}},
	})
	if err != nil {
		return 0, storage.Unavailable("purge samples", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return storage.Unavailable("ping", s.client.Ping(ctx, nil))
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
