package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/go-zion/internal/storage"
)

type mongoPoolRepository struct {
	collection *mongo.Collection
}

func (r *mongoPoolRepository) Save(ctx context.Context, p *storage.PoolModel) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"address": p.Address}
	update := bson.M{
		"$set": bson.M{
			"admin":            p.Admin,
			"status":           p.Status,
			"last_update_slot": p.LastUpdateSlot,
			"record":           p.Record,
			"updated_at":       p.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        p.ID,
			"created_at": p.CreatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *mongoPoolRepository) FindByAddress(ctx context.Context, address string) (*storage.PoolModel, error) {
	var p storage.PoolModel
	err := r.collection.FindOne(ctx, bson.M{"address": address}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *mongoPoolRepository) FindByAdmin(ctx context.Context, admin string, limit int, offset int) ([]*storage.PoolModel, error) {
	opts := options.Find().SetLimit(int64(limit)).SetSkip(int64(offset)).SetSort(bson.D{{Key: "address", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"admin": admin}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var pools []*storage.PoolModel
	if err := cursor.All(ctx, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}
