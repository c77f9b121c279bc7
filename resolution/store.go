package resolution

import (
	"context"

	"github.com/metrofound/lostfound-api/models"
)

// StatusProvenance records which flow is asking for an item status change.
// Setting an item to resolved is only legal from a claim approval or the
// owner's self-report; stores refuse it from any other path.
type StatusProvenance string

// Predefined StatusProvenance values
const (
	ViaClaimDecision StatusProvenance = "claim_decision"
	ViaSelfReport    StatusProvenance = "self_report"
	ViaAdminOverride StatusProvenance = "admin_override"
	ViaScheduler     StatusProvenance = "scheduler"
)

// ItemFilter narrows List results
type ItemFilter struct {
	Kind       models.ItemKind
	Status     models.ItemStatus
	Category   string
	Station    string
	ReporterID string
	Limit      int
	Page       int
}

// ClaimFilter narrows claim listings
type ClaimFilter struct {
	ItemID     string
	ClaimantID string
	Status     models.ClaimStatus
	Limit      int
	Page       int
}

// ClaimPatch is the set of fields a compare-and-swap may write alongside the
// new status. ReviewerID and ThreadID are only written when non-empty unless
// ClearReview is set.
type ClaimPatch struct {
	Status          models.ClaimStatus
	RejectionReason string
	ReviewerID      string
	ThreadID        string
	Reviewed        bool
	// ClearReview writes ReviewerID even when empty and removes the review
	// timestamp. Rollbacks use it to strip the residue of an undone decision.
	ClearReview bool
}

// ItemStore is the persistence boundary for items. The engine is its only
// mutating consumer.
type ItemStore interface {
	Insert(ctx context.Context, item *models.Item) (string, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	List(ctx context.Context, filter ItemFilter) ([]models.Item, error)
	// UpdateStatus rejects ErrValidation when to is resolved and via is
	// neither ViaClaimDecision nor ViaSelfReport.
	UpdateStatus(ctx context.Context, id string, to models.ItemStatus, via StatusProvenance) error
	SetMatch(ctx context.Context, id, matchedItemID string) error
	Delete(ctx context.Context, id string) error
}

// ClaimStore is the persistence boundary for claims. Insert enforces the
// single-active-claim invariant; CompareAndSwap is the serialization point
// for decisions: it writes the patch only while the claim still has the
// expected status and reports whether it won.
type ClaimStore interface {
	Insert(ctx context.Context, claim *models.Claim) (string, error)
	Get(ctx context.Context, id string) (*models.Claim, error)
	List(ctx context.Context, filter ClaimFilter) ([]models.Claim, error)
	CountActive(ctx context.Context, itemID string) (int64, error)
	CompareAndSwap(ctx context.Context, id string, from models.ClaimStatus, patch ClaimPatch) (bool, error)
	SetThread(ctx context.Context, id, threadID string) error
}

// ThreadStore is the persistence boundary for support threads and their
// embedded message logs.
type ThreadStore interface {
	Insert(ctx context.Context, thread *models.Thread) (string, error)
	Get(ctx context.Context, id string) (*models.Thread, error)
	ListByUser(ctx context.Context, userID string) ([]models.Thread, error)
	// Append adds the message to an open thread; it reports false when the
	// thread is already closed.
	Append(ctx context.Context, threadID string, msg models.Message) (bool, error)
	// Close is idempotent.
	Close(ctx context.Context, threadID string) error
	CloseByItem(ctx context.Context, itemID string) error
}
