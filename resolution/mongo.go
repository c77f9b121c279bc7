package resolution

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
)

// MongoStores bundles the durable store implementations over the typed
// collection wrappers. The claims collection carries a partial unique index
// on itemId for non-terminal statuses, created by ClaimDatabase.EnsureIndexes
// during App.Initialize, which backs the single-active-claim invariant under
// concurrent creates.
type MongoStores struct {
	ItemDB   databases.ItemDatabase
	ClaimDB  databases.ClaimDatabase
	ThreadDB databases.ThreadDatabase
}

// Items returns the ItemStore view
func (m MongoStores) Items() ItemStore { return mongoItems{m.ItemDB} }

// Claims returns the ClaimStore view
func (m MongoStores) Claims() ClaimStore { return mongoClaims{m.ClaimDB} }

// Threads returns the ThreadStore view
func (m MongoStores) Threads() ThreadStore { return mongoThreads{m.ThreadDB} }

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return oid, nil
}

func mapFindErr(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return err
}

func pageOpts(limit, page int) *options.FindOptions {
	if limit <= 0 {
		limit = 10
	}
	if page < 0 {
		page = 0
	}
	l := int64(limit)
	skip := int64(page) * l
	return &options.FindOptions{Limit: &l, Skip: &skip}
}

type mongoItems struct {
	db databases.ItemDatabase
}

var _ ItemStore = mongoItems{}

func (s mongoItems) Insert(ctx context.Context, item *models.Item) (string, error) {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	if _, err := s.db.InsertOne(ctx, item); err != nil {
		return "", err
	}
	return item.ID.Hex(), nil
}

func (s mongoItems) Get(ctx context.Context, id string) (*models.Item, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.db.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, mapFindErr(err, "item", id)
	}
	return item, nil
}

func (s mongoItems) List(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	query := bson.M{}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Station != "" {
		query["station"] = filter.Station
	}
	if filter.ReporterID != "" {
		query["reporterId"] = filter.ReporterID
	}
	items, err := s.db.Find(ctx, query, pageOpts(filter.Limit, filter.Page))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items = []models.Item{}
	}
	return items, nil
}

func (s mongoItems) UpdateStatus(ctx context.Context, id string, to models.ItemStatus, via StatusProvenance) error {
	if to == models.ItemStatusResolved && via != ViaClaimDecision && via != ViaSelfReport {
		return fmt.Errorf("%w: resolved requires a claim approval or self-report", ErrValidation)
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.db.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"status":    to,
		"updatedAt": now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return nil
}

func (s mongoItems) SetMatch(ctx context.Context, id, matchedItemID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.db.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"matchedItemId": matchedItemID,
		"updatedAt":     now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return nil
}

func (s mongoItems) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	deleted, err := s.db.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return nil
}

type mongoClaims struct {
	db databases.ClaimDatabase
}

var _ ClaimStore = mongoClaims{}

func activeClaimFilter(itemID string) bson.M {
	return bson.M{
		"itemId": itemID,
		"status": bson.M{"$in": []models.ClaimStatus{
			models.ClaimStatusSubmitted,
			models.ClaimStatusVerificationChat,
		}},
	}
}

func (s mongoClaims) Insert(ctx context.Context, claim *models.Claim) (string, error) {
	active, err := s.CountActive(ctx, claim.ItemID)
	if err != nil {
		return "", err
	}
	if active > 0 {
		return "", fmt.Errorf("%w: item already has an active claim", ErrConflict)
	}
	if claim.ID.IsZero() {
		claim.ID = primitive.NewObjectID()
	}
	if _, err := s.db.InsertOne(ctx, claim); err != nil {
		// the partial unique index catches the create/create race the count
		// check above cannot see
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: item already has an active claim", ErrConflict)
		}
		return "", err
	}
	return claim.ID.Hex(), nil
}

func (s mongoClaims) Get(ctx context.Context, id string) (*models.Claim, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	claim, err := s.db.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, mapFindErr(err, "claim", id)
	}
	return claim, nil
}

func (s mongoClaims) List(ctx context.Context, filter ClaimFilter) ([]models.Claim, error) {
	query := bson.M{}
	if filter.ItemID != "" {
		query["itemId"] = filter.ItemID
	}
	if filter.ClaimantID != "" {
		query["claimantId"] = filter.ClaimantID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	claims, err := s.db.Find(ctx, query, pageOpts(filter.Limit, filter.Page))
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		claims = []models.Claim{}
	}
	return claims, nil
}

func (s mongoClaims) CountActive(ctx context.Context, itemID string) (int64, error) {
	return s.db.CountDocuments(ctx, activeClaimFilter(itemID))
}

func (s mongoClaims) CompareAndSwap(ctx context.Context, id string, from models.ClaimStatus, patch ClaimPatch) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	set := bson.M{
		"status":          patch.Status,
		"rejectionReason": patch.RejectionReason,
		"updatedAt":       now(),
	}
	if patch.ReviewerID != "" || patch.ClearReview {
		set["reviewerId"] = patch.ReviewerID
	}
	if patch.ThreadID != "" {
		set["threadId"] = patch.ThreadID
	}
	if patch.Reviewed {
		set["reviewedAt"] = now()
	}

	update := bson.M{"$set": set}
	if patch.ClearReview {
		update["$unset"] = bson.M{"reviewedAt": ""}
	}

	res, err := s.db.UpdateOne(ctx, bson.M{"_id": oid, "status": from}, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// distinguish a lost race from a missing claim
	n, err := s.db.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	return false, nil
}

func (s mongoClaims) SetThread(ctx context.Context, id, threadID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.db.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"threadId":  threadID,
		"updatedAt": now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	return nil
}

type mongoThreads struct {
	db databases.ThreadDatabase
}

var _ ThreadStore = mongoThreads{}

func (s mongoThreads) Insert(ctx context.Context, thread *models.Thread) (string, error) {
	if thread.ID.IsZero() {
		thread.ID = primitive.NewObjectID()
	}
	if _, err := s.db.InsertOne(ctx, thread); err != nil {
		return "", err
	}
	return thread.ID.Hex(), nil
}

func (s mongoThreads) Get(ctx context.Context, id string) (*models.Thread, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	thread, err := s.db.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, mapFindErr(err, "thread", id)
	}
	return thread, nil
}

func (s mongoThreads) ListByUser(ctx context.Context, userID string) ([]models.Thread, error) {
	threads, err := s.db.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		threads = []models.Thread{}
	}
	return threads, nil
}

func (s mongoThreads) Append(ctx context.Context, threadID string, msg models.Message) (bool, error) {
	oid, err := objectID(threadID)
	if err != nil {
		return false, err
	}
	// guarded push: only lands while the thread is not closed
	res, err := s.db.UpdateOne(ctx,
		bson.M{"_id": oid, "status": bson.M{"$ne": models.ThreadStatusClosed}},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updatedAt": now()},
		})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// either the thread is closed or it does not exist
	if _, err := s.db.FindOne(ctx, bson.M{"_id": oid}); err != nil {
		return false, mapFindErr(err, "thread", threadID)
	}
	return false, nil
}

func (s mongoThreads) Close(ctx context.Context, threadID string) error {
	oid, err := objectID(threadID)
	if err != nil {
		return err
	}
	res, err := s.db.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"status":    models.ThreadStatusClosed,
		"updatedAt": now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	return nil
}

func (s mongoThreads) CloseByItem(ctx context.Context, itemID string) error {
	_, err := s.db.UpdateMany(ctx,
		bson.M{"relatedItemId": itemID, "status": bson.M{"$ne": models.ThreadStatusClosed}},
		bson.M{"$set": bson.M{
			"status":    models.ThreadStatusClosed,
			"updatedAt": now(),
		}})
	return err
}
