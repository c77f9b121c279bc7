package databases

// go generate: mockery --name ClaimDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/models"
)

const claimName = "claims"

// ClaimDatabase contains the methods to use with the claims collection
type ClaimDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Claim, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Claim, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type claimDatabase struct {
	db DatabaseHelper
}

// NewClaimDatabase initializes a new instance of claim database with the provided db connection
func NewClaimDatabase(db DatabaseHelper) ClaimDatabase {
	return &claimDatabase{
		db: db,
	}
}

func (c *claimDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Claim, error) {
	claim := &models.Claim{}
	err := c.db.Collection(claimName).FindOne(ctx, filter, opts...).Decode(&claim)
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (c *claimDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Claim, error) {
	var claims []models.Claim
	cur, err := c.db.Collection(claimName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *claimDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(claimName).InsertOne(ctx, document, opts...)
}

func (c *claimDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(claimName).UpdateOne(ctx, filter, update, opts...)
}

func (c *claimDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(claimName).CountDocuments(ctx, filter, opts...)
}

// EnsureIndexes creates the partial unique index on itemId that limits each
// item to a single claim in a non-terminal status. The duplicate-key error it
// produces is what closes the concurrent create/create race.
func (c *claimDatabase) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "itemId", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"status": bson.M{"$in": []string{
					string(models.ClaimStatusSubmitted),
					string(models.ClaimStatusVerificationChat),
				}},
			}),
	}
	_, err := c.db.Collection(claimName).CreateIndex(ctx, model)
	return err
}
