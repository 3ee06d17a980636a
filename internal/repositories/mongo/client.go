// Package mongo implements the repositories on MongoDB. Multi-document writes require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shelfmarket/api/internal/platform/config"
	"github.com/shelfmarket/api/internal/repositories"
)

const (
	cartCollection    = "carts"
	orderCollection   = "orders"
	catalogCollection = "books"
)

// Connect dials the cluster and verifies it answers before returning the database handle.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes backing order listings. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	newest := bson.E{Key: "placedAt", Value: -1}
	tiebreak := bson.E{Key: "_id", Value: -1}
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyerId", Value: 1}, newest, tiebreak}},
		{Keys: bson.D{{Key: "sellerId", Value: 1}, {Key: "status", Value: 1}, newest, tiebreak}},
		{Keys: bson.D{{Key: "status", Value: 1}, newest, tiebreak}},
	}
	if _, err := db.Collection(orderCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo: create order indexes: %w", err)
	}
	return nil
}

// wrapError maps driver failures onto repository categories.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "document not found", err)
	case mongo.IsDuplicateKeyError(err):
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "duplicate key", err)
	case isTransientTransaction(err):
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "transaction conflict", err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return repositories.Unavailable(op, err)
	}
	return repositories.NewStoreError(op, repositories.StoreErrorUnknown, "", err)
}

func isTransientTransaction(err error) bool {
	var labeled mongo.LabeledError
	return errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError")
}
