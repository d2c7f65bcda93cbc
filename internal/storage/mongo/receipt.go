package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/go-zion/internal/storage"
)

type mongoReceiptRepository struct {
	collection *mongo.Collection
}

// Save inserts a receipt. Receipts are immutable; saving an existing id is a
// no-op.
func (r *mongoReceiptRepository) Save(ctx context.Context, receipt *storage.ReceiptModel) error {
	_, err := r.collection.InsertOne(ctx, receipt)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *mongoReceiptRepository) SaveBatch(ctx context.Context, receipts []*storage.ReceiptModel) error {
	helper := storage.NewMongoBatchHelper[*storage.ReceiptModel](r.collection)
	err := helper.InsertMany(ctx, receipts)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *mongoReceiptRepository) FindByID(ctx context.Context, id string) (*storage.ReceiptModel, error) {
	var receipt storage.ReceiptModel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&receipt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *mongoReceiptRepository) FindByPool(ctx context.Context, pool string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	return r.find(ctx, bson.M{"pool": pool}, limit, offset)
}

func (r *mongoReceiptRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.ReceiptModel, error) {
	return r.find(ctx, bson.M{"signer": signer}, limit, offset)
}

func (r *mongoReceiptRepository) find(ctx context.Context, filter bson.M, limit, offset int) ([]*storage.ReceiptModel, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "slot", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var receipts []*storage.ReceiptModel
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}
