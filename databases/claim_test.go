package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/databases/mocks"
)

func TestClaim_EnsureIndexesCreatesPartialUniqueIndex(t *testing.T) {
	var dbHelper mocks.DatabaseHelper
	var collectionHelper mocks.CollectionHelper

	var captured mongo.IndexModel
	collectionHelper.On("CreateIndex", mock.Anything, mock.AnythingOfType("mongo.IndexModel")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(mongo.IndexModel)
		}).
		Return("itemId_1", nil)
	dbHelper.On("Collection", "claims").Return(&collectionHelper)

	claimDB := databases.NewClaimDatabase(&dbHelper)
	err := claimDB.EnsureIndexes(context.Background())
	require.NoError(t, err)
	collectionHelper.AssertNumberOfCalls(t, "CreateIndex", 1)

	keys, ok := captured.Keys.(bson.D)
	require.True(t, ok)
	require.Len(t, keys, 1)
	assert.Equal(t, "itemId", keys[0].Key)
	assert.Equal(t, 1, keys[0].Value)

	require.NotNil(t, captured.Options)
	require.NotNil(t, captured.Options.Unique)
	assert.True(t, *captured.Options.Unique)

	// the index must only cover claims still in play, so terminal claims
	// never block a fresh claim on the same item
	partial, ok := captured.Options.PartialFilterExpression.(bson.M)
	require.True(t, ok)
	statusFilter, ok := partial["status"].(bson.M)
	require.True(t, ok)
	statuses, ok := statusFilter["$in"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"submitted", "verification-chat"}, statuses)
}

func TestClaim_EnsureIndexesPropagatesError(t *testing.T) {
	var dbHelper mocks.DatabaseHelper
	var collectionHelper mocks.CollectionHelper

	collectionHelper.On("CreateIndex", mock.Anything, mock.AnythingOfType("mongo.IndexModel")).
		Return("", errors.New("index build failed"))
	dbHelper.On("Collection", "claims").Return(&collectionHelper)

	claimDB := databases.NewClaimDatabase(&dbHelper)
	err := claimDB.EnsureIndexes(context.Background())
	assert.EqualError(t, err, "index build failed")
}
