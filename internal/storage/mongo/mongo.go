package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/go-zion/internal/config"
	"github.com/lugondev/go-zion/internal/storage"
)

const (
	poolsCollection    = "pools"
	receiptsCollection = "receipts"
)

func init() {
	storage.Register(storage.DatabaseTypeMongoDB, func(ctx context.Context, cfg *config.DatabaseConfig) (storage.Repository, error) {
		repo, err := NewMongoRepository(ctx, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo repository: %w", err)
		}
		return repo, nil
	})
}

type MongoRepository struct {
	client      *mongo.Client
	database    *mongo.Database
	pools       *mongo.Collection
	receipts    *mongo.Collection
	poolRepo    storage.PoolRepository
	receiptRepo storage.ReceiptRepository
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	repo := &MongoRepository{
		client:   client,
		database: database,
		pools:    database.Collection(poolsCollection),
		receipts: database.Collection(receiptsCollection),
	}
	repo.poolRepo = &mongoPoolRepository{collection: repo.pools}
	repo.receiptRepo = &mongoReceiptRepository{collection: repo.receipts}

	if err := repo.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	indexes := []struct {
		collection *mongo.Collection
		models     []mongo.IndexModel
	}{
		{
			collection: r.pools,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "address", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "admin", Value: 1}}},
			},
		},
		{
			collection: r.receipts,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "pool", Value: 1}, {Key: "slot", Value: -1}}},
				{Keys: bson.D{{Key: "signer", Value: 1}, {Key: "slot", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateMany(ctx, idx.models); err != nil {
			return err
		}
	}

	return nil
}

func (r *MongoRepository) Pools() storage.PoolRepository {
	return r.poolRepo
}

func (r *MongoRepository) Receipts() storage.ReceiptRepository {
	return r.receiptRepo
}

func (r *MongoRepository) Close() error {
	if r.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.client.Disconnect(ctx)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
