package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
)

type fakeLockDB struct {
	held     bool
	acquired []string
	released []string
}

func (f *fakeLockDB) TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired = append(f.acquired, jobName)
	return true, nil
}

func (f *fakeLockDB) ReleaseLock(ctx context.Context, jobName, instanceID string) error {
	f.released = append(f.released, jobName)
	return nil
}

type fakeItemDB struct {
	databases.ItemDatabase
	mu      sync.Mutex
	items   []models.Item
	updates []interface{}
}

func (f *fakeItemDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Item, error) {
	return f.items, nil
}

func (f *fakeItemDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, filter)
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

type fakeClaimDB struct {
	databases.ClaimDatabase
	activeByItem map[string]int64
}

func (f *fakeClaimDB) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	m, ok := filter.(bson.M)
	if !ok {
		return 0, nil
	}
	itemID, _ := m["itemId"].(string)
	return f.activeByItem[itemID], nil
}

func staleItem(title, reporterID string) models.Item {
	return models.Item{
		ID:         primitive.NewObjectID(),
		Kind:       models.ItemKindFound,
		Title:      title,
		Status:     models.ItemStatusListed,
		ReporterID: reporterID,
		CreatedAt:  primitive.NewDateTimeFromTime(time.Now().Add(-120 * 24 * time.Hour)),
	}
}

func TestExpireStaleListingsSkipsItemsWithActiveClaims(t *testing.T) {
	claimed := staleItem("Black umbrella", "staff-1")
	unclaimed := staleItem("Blue backpack", "staff-1")

	itemDB := &fakeItemDB{items: []models.Item{claimed, unclaimed}}
	claimDB := &fakeClaimDB{activeByItem: map[string]int64{claimed.ID.Hex(): 1}}
	lockDB := &fakeLockDB{}

	s := NewScheduler(nil, itemDB, claimDB, nil, nil, lockDB)
	s.expireStaleListings()

	// only the unclaimed listing gets closed
	require.Len(t, itemDB.updates, 1)
	assert.Equal(t, []string{"listing_expiry_job"}, lockDB.acquired)
	assert.Equal(t, []string{"listing_expiry_job"}, lockDB.released)
}

func TestExpireStaleListingsSkipsWhenLockHeld(t *testing.T) {
	itemDB := &fakeItemDB{items: []models.Item{staleItem("Black umbrella", "staff-1")}}
	lockDB := &fakeLockDB{held: true}

	s := NewScheduler(nil, itemDB, &fakeClaimDB{}, nil, nil, lockDB)
	s.expireStaleListings()

	assert.Empty(t, itemDB.updates)
	assert.Empty(t, lockDB.released)
}
