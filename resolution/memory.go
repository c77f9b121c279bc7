package resolution

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/metrofound/lostfound-api/models"
)

// MemoryStore backs all three store interfaces with in-process maps, used in
// tests and local development. One mutex covers every map, so the
// compare-and-swap operations are atomic the same way the database
// implementations are. Obtain the per-entity views via Items, Claims and
// Threads.
type MemoryStore struct {
	mu      sync.Mutex
	items   map[string]models.Item
	claims  map[string]models.Claim
	threads map[string]models.Thread
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]models.Item),
		claims:  make(map[string]models.Claim),
		threads: make(map[string]models.Thread),
	}
}

// Items returns the ItemStore view
func (m *MemoryStore) Items() ItemStore { return memItems{m} }

// Claims returns the ClaimStore view
func (m *MemoryStore) Claims() ClaimStore { return memClaims{m} }

// Threads returns the ThreadStore view
func (m *MemoryStore) Threads() ThreadStore { return memThreads{m} }

type memItems struct{ s *MemoryStore }
type memClaims struct{ s *MemoryStore }
type memThreads struct{ s *MemoryStore }

var _ ItemStore = memItems{}
var _ ClaimStore = memClaims{}
var _ ThreadStore = memThreads{}

func (v memItems) Insert(ctx context.Context, item *models.Item) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	v.s.items[item.ID.Hex()] = *item
	return item.ID.Hex(), nil
}

func (v memItems) Get(ctx context.Context, id string) (*models.Item, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	item, ok := v.s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return &item, nil
}

func (v memItems) List(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []models.Item{}
	for _, item := range v.s.items {
		if filter.Kind != "" && item.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.Station != "" && item.Station != filter.Station {
			continue
		}
		if filter.ReporterID != "" && item.ReporterID != filter.ReporterID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (v memItems) UpdateStatus(ctx context.Context, id string, to models.ItemStatus, via StatusProvenance) error {
	if to == models.ItemStatusResolved && via != ViaClaimDecision && via != ViaSelfReport {
		return fmt.Errorf("%w: resolved requires a claim approval or self-report", ErrValidation)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	item, ok := v.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	item.Status = to
	item.UpdatedAt = now()
	v.s.items[id] = item
	return nil
}

func (v memItems) SetMatch(ctx context.Context, id, matchedItemID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	item, ok := v.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	item.MatchedItemID = matchedItemID
	item.UpdatedAt = now()
	v.s.items[id] = item
	return nil
}

func (v memItems) Delete(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.items[id]; !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	delete(v.s.items, id)
	return nil
}

func (v memClaims) Insert(ctx context.Context, claim *models.Claim) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.claims {
		if existing.ItemID == claim.ItemID && !existing.Status.Terminal() {
			return "", fmt.Errorf("%w: item already has an active claim", ErrConflict)
		}
	}
	if claim.ID.IsZero() {
		claim.ID = primitive.NewObjectID()
	}
	v.s.claims[claim.ID.Hex()] = *claim
	return claim.ID.Hex(), nil
}

func (v memClaims) Get(ctx context.Context, id string) (*models.Claim, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	claim, ok := v.s.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	return &claim, nil
}

func (v memClaims) List(ctx context.Context, filter ClaimFilter) ([]models.Claim, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []models.Claim{}
	for _, claim := range v.s.claims {
		if filter.ItemID != "" && claim.ItemID != filter.ItemID {
			continue
		}
		if filter.ClaimantID != "" && claim.ClaimantID != filter.ClaimantID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		out = append(out, claim)
	}
	return out, nil
}

func (v memClaims) CountActive(ctx context.Context, itemID string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var n int64
	for _, claim := range v.s.claims {
		if claim.ItemID == itemID && !claim.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (v memClaims) CompareAndSwap(ctx context.Context, id string, from models.ClaimStatus, patch ClaimPatch) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	claim, ok := v.s.claims[id]
	if !ok {
		return false, fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	if claim.Status != from {
		return false, nil
	}
	claim.Status = patch.Status
	claim.RejectionReason = patch.RejectionReason
	if patch.ReviewerID != "" || patch.ClearReview {
		claim.ReviewerID = patch.ReviewerID
	}
	if patch.ThreadID != "" {
		claim.ThreadID = patch.ThreadID
	}
	if patch.Reviewed {
		claim.ReviewedAt = now()
	}
	if patch.ClearReview {
		claim.ReviewedAt = primitive.DateTime(0)
	}
	claim.UpdatedAt = now()
	v.s.claims[id] = claim
	return true, nil
}

func (v memClaims) SetThread(ctx context.Context, id, threadID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	claim, ok := v.s.claims[id]
	if !ok {
		return fmt.Errorf("%w: claim %s", ErrNotFound, id)
	}
	claim.ThreadID = threadID
	claim.UpdatedAt = now()
	v.s.claims[id] = claim
	return nil
}

func (v memThreads) Insert(ctx context.Context, thread *models.Thread) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if thread.ID.IsZero() {
		thread.ID = primitive.NewObjectID()
	}
	v.s.threads[thread.ID.Hex()] = *thread
	return thread.ID.Hex(), nil
}

func (v memThreads) Get(ctx context.Context, id string) (*models.Thread, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	thread, ok := v.s.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, id)
	}
	return &thread, nil
}

func (v memThreads) ListByUser(ctx context.Context, userID string) ([]models.Thread, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []models.Thread{}
	for _, thread := range v.s.threads {
		if thread.UserID == userID {
			out = append(out, thread)
		}
	}
	return out, nil
}

func (v memThreads) Append(ctx context.Context, threadID string, msg models.Message) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	thread, ok := v.s.threads[threadID]
	if !ok {
		return false, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if thread.Status.Terminal() {
		return false, nil
	}
	thread.Messages = append(thread.Messages, msg)
	thread.UpdatedAt = now()
	v.s.threads[threadID] = thread
	return true, nil
}

func (v memThreads) Close(ctx context.Context, threadID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	thread, ok := v.s.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if thread.Status.Terminal() {
		return nil
	}
	thread.Status = models.ThreadStatusClosed
	thread.UpdatedAt = now()
	v.s.threads[threadID] = thread
	return nil
}

func (v memThreads) CloseByItem(ctx context.Context, itemID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for id, thread := range v.s.threads {
		if thread.RelatedItemID == itemID && !thread.Status.Terminal() {
			thread.Status = models.ThreadStatusClosed
			thread.UpdatedAt = now()
			v.s.threads[id] = thread
		}
	}
	return nil
}
