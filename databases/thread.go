package databases

// go generate: mockery --name ThreadDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/models"
)

const threadName = "threads"

// ThreadDatabase contains the methods to use with the threads collection
type ThreadDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Thread, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Thread, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type threadDatabase struct {
	db DatabaseHelper
}

// NewThreadDatabase initializes a new instance of thread database with the provided db connection
func NewThreadDatabase(db DatabaseHelper) ThreadDatabase {
	return &threadDatabase{
		db: db,
	}
}

func (t *threadDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Thread, error) {
	thread := &models.Thread{}
	err := t.db.Collection(threadName).FindOne(ctx, filter, opts...).Decode(&thread)
	if err != nil {
		return nil, err
	}
	return thread, nil
}

func (t *threadDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Thread, error) {
	var threads []models.Thread
	cur, err := t.db.Collection(threadName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&threads)
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (t *threadDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return t.db.Collection(threadName).InsertOne(ctx, document, opts...)
}

func (t *threadDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return t.db.Collection(threadName).UpdateOne(ctx, filter, update, opts...)
}

func (t *threadDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return t.db.Collection(threadName).UpdateMany(ctx, filter, update, opts...)
}
