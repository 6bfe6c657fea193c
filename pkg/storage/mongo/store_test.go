package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"stockstream/config"
	"stockstream/pkg/storage"
	"stockstream/pkg/storage/storagetest"

	"go.mongodb.org/mongo-driver/bson"
)

// go test -v --run ^TestMongoStore$
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("STOCKSTREAM_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STOCKSTREAM_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, config.MongoConfig{
		URI:        uri,
		Database:   "stockstream_test",
		Collection: "stock_crypto_prices",
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	storagetest.Run(t, func(t *testing.T) storage.Store { return s })
}

// go test -v --run ^TestDocumentRoundTrip$
func TestDocumentRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 13, 0, 0, 0, time.FixedZone("KST", 9*3600))
	in := storage.PriceSample{Symbol: "XRP-USD", AssetType: storage.AssetCrypto, Price: 0.52, Volume: 10, Timestamp: ts}

	doc := toDocument(in)
	if doc.Type != "crypto" {
		t.Errorf("document type = %q, want crypto", doc.Type)
	}
	if doc.Timestamp.Location() != time.UTC {
		t.Errorf("document timestamp not UTC: %v", doc.Timestamp)
	}

	out := doc.sample()
	if out.Symbol != in.Symbol || out.AssetType != in.AssetType || !out.Timestamp.Equal(ts) {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
}

// go test -v --run ^TestSampleValidator$
func TestSampleValidator(t *testing.T) {
	schema, ok := sampleValidator()["$jsonSchema"].(bson.M)
	if !ok {
		t.Fatal("validator has no $jsonSchema")
	}

	required, _ := schema["required"].(bson.A)
	want := map[string]bool{"symbol": true, "price": true, "timestamp": true, "type": true}
	if len(required) != len(want) {
		t.Fatalf("required = %v", required)
	}
	for _, f := range required {
		if !want[f.(string)] {
			t.Errorf("unexpected required field %v", f)
		}
	}

	props := schema["properties"].(bson.M)
	enum, _ := props["type"].(bson.M)["enum"].(bson.A)
	if len(enum) != 2 || enum[0] != "stock" || enum[1] != "crypto" {
		t.Errorf("type enum = %v, want [stock crypto]", enum)
	}
	if got := props["timestamp"].(bson.M)["bsonType"]; got != "date" {
		t.Errorf("timestamp bsonType = %v, want date", got)
	}
}

// go test -v --run ^TestMongoRejectsInvalidType$
func TestMongoRejectsInvalidType(t *testing.T) {
	uri := os.Getenv("STOCKSTREAM_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STOCKSTREAM_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, config.MongoConfig{
		URI:        uri,
		Database:   "stockstream_test",
		Collection: "stock_crypto_prices_validated",
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	err = s.Insert(ctx, storage.PriceSample{Symbol: "GLD", AssetType: storage.AssetType("bond"), Price: 1, Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected insert with unknown type to be rejected")
	}
}
