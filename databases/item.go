package databases

// go generate: mockery --name ItemDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/models"
)

const itemName = "items"

// ItemDatabase contains the methods to use with the items collection
type ItemDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Item, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Item, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type itemDatabase struct {
	db DatabaseHelper
}

// NewItemDatabase initializes a new instance of item database with the provided db connection
func NewItemDatabase(db DatabaseHelper) ItemDatabase {
	return &itemDatabase{
		db: db,
	}
}

func (i *itemDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Item, error) {
	item := &models.Item{}
	err := i.db.Collection(itemName).FindOne(ctx, filter, opts...).Decode(&item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (i *itemDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Item, error) {
	var items []models.Item
	cur, err := i.db.Collection(itemName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (i *itemDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return i.db.Collection(itemName).InsertOne(ctx, document, opts...)
}

func (i *itemDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return i.db.Collection(itemName).UpdateOne(ctx, filter, update, opts...)
}

func (i *itemDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return i.db.Collection(itemName).DeleteOne(ctx, filter, opts...)
}

func (i *itemDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return i.db.Collection(itemName).CountDocuments(ctx, filter, opts...)
}
