package resolution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/models"
)

// Notifier receives best-effort user notifications triggered by engine
// transitions. Implementations must never fail a transition: delivery
// problems are their own to log and retry.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]interface{})
}

// Decision is an admin's verdict on a claim
type Decision string

// Predefined Decision values
const (
	DecisionApprove          Decision = "approve"
	DecisionReject           Decision = "reject"
	DecisionOpenVerification Decision = "open-verification"
)

// ParseDecision validates a decision string from a request body
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject, DecisionOpenVerification:
		return Decision(s), nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrValidation, s)
}

// Engine coordinates the claim lifecycle across the item, claim and thread
// stores. It is the only component that mutates more than one store in a
// single logical operation; every decision is serialized through a
// compare-and-swap on the claim's current status, so of two concurrent
// admins exactly one wins and the loser observes Conflict.
type Engine struct {
	items    ItemStore
	claims   ClaimStore
	threads  ThreadStore
	notifier Notifier
	bus      *Bus
}

// NewEngine wires the engine with its stores. notifier may be nil when no
// notification surface exists (tests, batch tools).
func NewEngine(items ItemStore, claims ClaimStore, threads ThreadStore, notifier Notifier) *Engine {
	return &Engine{
		items:    items,
		claims:   claims,
		threads:  threads,
		notifier: notifier,
		bus:      NewBus(),
	}
}

// Events exposes the engine's change feed for websocket fan-out and other
// subscribers
func (e *Engine) Events() *Bus {
	return e.bus
}

func (e *Engine) notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]interface{}) {
	if e.notifier == nil || userID == "" {
		return
	}
	e.notifier.Notify(ctx, userID, kind, payload)
}

func now() primitive.DateTime {
	return primitive.NewDateTimeFromTime(time.Now())
}

// CreateItem files a lost report or registers found property. Lost reports
// start in reported status and get a support thread; found property starts
// listed and is immediately claimable.
func (e *Engine) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if strings.TrimSpace(item.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if item.ReporterID == "" {
		return nil, fmt.Errorf("%w: reporterId is required", ErrValidation)
	}
	switch item.Kind {
	case models.ItemKindLost:
		item.Status = models.ItemStatusReported
	case models.ItemKindFound:
		item.Status = models.ItemStatusListed
	default:
		return nil, fmt.Errorf("%w: unknown item kind %q", ErrValidation, item.Kind)
	}
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt

	id, err := e.items.Insert(ctx, item)
	if err != nil {
		return nil, err
	}

	if item.Kind == models.ItemKindLost {
		// every lost report gets a support thread so the rider can talk to
		// the desk without a claim existing yet
		thread := &models.Thread{
			UserID:        item.ReporterID,
			Subject:       fmt.Sprintf("Lost report: %s", item.Title),
			Type:          models.ThreadTypeSupport,
			Status:        models.ThreadStatusOpen,
			RelatedItemID: id,
			Messages: []models.Message{{
				ID:         uuid.NewString(),
				SenderID:   "system",
				SenderRole: models.SenderRoleSystem,
				Body:       "Your lost property report has been filed. Our staff will reach out here if we find a match.",
				CreatedAt:  now(),
			}},
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		if _, err := e.threads.Insert(ctx, thread); err != nil {
			// the report itself is filed; a missing support thread is
			// recoverable by staff
			zap.S().Errorw("failed to open support thread for lost report", "itemId", id, "error", err)
		}
	}

	e.bus.Publish(Event{Type: EventItemCreated, ItemID: id, UserID: item.ReporterID})
	return item, nil
}

// GetItem returns an item by id
func (e *Engine) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return e.items.Get(ctx, id)
}

// ListItems returns items matching the filter
func (e *Engine) ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	return e.items.List(ctx, filter)
}

// DeleteItem removes an item unless an active claim references it
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	active, err := e.claims.CountActive(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: item has an active claim", ErrConflict)
	}
	return e.items.Delete(ctx, id)
}

// MarkMatch links a found item to a lost report and flags the report as
// tentatively matched. The reporter is notified so they can come claim it.
func (e *Engine) MarkMatch(ctx context.Context, lostItemID, foundItemID string) (*models.Item, error) {
	item, err := e.items.Get(ctx, lostItemID)
	if err != nil {
		return nil, err
	}
	if item.Kind != models.ItemKindLost {
		return nil, fmt.Errorf("%w: only lost reports can be matched", ErrValidation)
	}
	if item.Status != models.ItemStatusReported {
		return nil, fmt.Errorf("%w: cannot match item in status %s", ErrInvalidTransition, item.Status)
	}
	if _, err := e.items.Get(ctx, foundItemID); err != nil {
		return nil, err
	}
	if err := e.items.SetMatch(ctx, lostItemID, foundItemID); err != nil {
		return nil, err
	}
	if err := e.items.UpdateStatus(ctx, lostItemID, models.ItemStatusMatchFound, ViaAdminOverride); err != nil {
		return nil, err
	}

	e.notify(ctx, item.ReporterID, models.NotificationVerification, map[string]interface{}{
		"itemId":        lostItemID,
		"matchedItemId": foundItemID,
	})
	e.bus.Publish(Event{Type: EventItemUpdated, ItemID: lostItemID, UserID: item.ReporterID})

	item.Status = models.ItemStatusMatchFound
	item.MatchedItemID = foundItemID
	return item, nil
}

// CreateClaim files an ownership claim against a found item. The item's
// status is left untouched until an admin decision; the single-active-claim
// invariant is enforced by the claim store.
func (e *Engine) CreateClaim(ctx context.Context, itemID, claimantID, reason, proof string) (*models.Claim, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	item, err := e.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Kind != models.ItemKindFound {
		return nil, fmt.Errorf("%w: claims can only target found property", ErrValidation)
	}
	if item.Status.Terminal() {
		return nil, fmt.Errorf("%w: item is no longer available", ErrConflict)
	}

	claim := &models.Claim{
		ItemID:     itemID,
		ClaimantID: claimantID,
		Reason:     reason,
		Proof:      proof,
		Status:     models.ClaimStatusSubmitted,
		CreatedAt:  now(),
		UpdatedAt:  now(),
	}
	id, err := e.claims.Insert(ctx, claim)
	if err != nil {
		return nil, err
	}

	e.bus.Publish(Event{Type: EventClaimCreated, ClaimID: id, ItemID: itemID, UserID: claimantID})
	return claim, nil
}

// GetClaim returns a claim by id
func (e *Engine) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	return e.claims.Get(ctx, id)
}

// ListClaims returns claims matching the filter
func (e *Engine) ListClaims(ctx context.Context, filter ClaimFilter) ([]models.Claim, error) {
	return e.claims.List(ctx, filter)
}

// DecideClaim applies an admin decision to a claim. Approve and reject are
// final; open-verification moves the claim into its chat sub-state and is a
// no-op when a verification thread is already linked.
func (e *Engine) DecideClaim(ctx context.Context, claimID string, decision Decision, reason, reviewerID string) (*models.Claim, error) {
	claim, err := e.claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}

	switch decision {
	case DecisionApprove:
		return e.finalize(ctx, claim, models.ClaimStatusApproved, "", reviewerID)
	case DecisionReject:
		if strings.TrimSpace(reason) == "" {
			return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
		}
		return e.finalize(ctx, claim, models.ClaimStatusRejected, reason, reviewerID)
	case DecisionOpenVerification:
		return e.openVerification(ctx, claim, reviewerID)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}
}

// finalize commits an approve or reject. The compare-and-swap on the claim's
// current status is the serialization point; item and thread side effects run
// only after the swap is won, and a failed item write restores the claim so a
// transient backend error never leaves a half-applied decision.
func (e *Engine) finalize(ctx context.Context, claim *models.Claim, to models.ClaimStatus, reason, reviewerID string) (*models.Claim, error) {
	from := claim.Status
	if from.Terminal() {
		return nil, fmt.Errorf("%w: claim already %s", ErrInvalidTransition, from)
	}

	item, err := e.items.Get(ctx, claim.ItemID)
	if err != nil {
		return nil, err
	}
	if to == models.ClaimStatusApproved && item.Status == models.ItemStatusResolved {
		return nil, fmt.Errorf("%w: item already resolved by another claim", ErrConflict)
	}

	won, err := e.claims.CompareAndSwap(ctx, claim.ID.Hex(), from, ClaimPatch{
		Status:          to,
		RejectionReason: reason,
		ReviewerID:      reviewerID,
		Reviewed:        true,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, e.loseReason(ctx, claim.ID.Hex())
	}

	itemStatus := models.ItemStatusListed
	if to == models.ClaimStatusApproved {
		itemStatus = models.ItemStatusResolved
	}
	if err := e.items.UpdateStatus(ctx, claim.ItemID, itemStatus, ViaClaimDecision); err != nil {
		// restore the claim so the decision can be retried whole, including
		// stripping the reviewer and review timestamp the won swap wrote
		if _, rbErr := e.claims.CompareAndSwap(ctx, claim.ID.Hex(), to, ClaimPatch{
			Status:          from,
			RejectionReason: claim.RejectionReason,
			ReviewerID:      claim.ReviewerID,
			ThreadID:        claim.ThreadID,
			ClearReview:     true,
		}); rbErr != nil {
			zap.S().Errorw("failed to restore claim after item update failure",
				"claimId", claim.ID.Hex(), "error", rbErr)
		}
		return nil, err
	}

	if claim.ThreadID != "" {
		if err := e.threads.Close(ctx, claim.ThreadID); err != nil {
			zap.S().Errorw("failed to close verification thread", "threadId", claim.ThreadID, "error", err)
		} else {
			e.bus.Publish(Event{Type: EventThreadClosed, ThreadID: claim.ThreadID, ClaimID: claim.ID.Hex()})
		}
	}

	kind := models.NotificationClaimRejected
	if to == models.ClaimStatusApproved {
		kind = models.NotificationClaimApproved
	}
	e.notify(ctx, claim.ClaimantID, kind, map[string]interface{}{
		"claimId": claim.ID.Hex(),
		"itemId":  claim.ItemID,
		"reason":  reason,
	})
	e.bus.Publish(Event{Type: EventClaimDecided, ClaimID: claim.ID.Hex(), ItemID: claim.ItemID, UserID: claim.ClaimantID})
	e.bus.Publish(Event{Type: EventItemUpdated, ItemID: claim.ItemID})

	claim.Status = to
	claim.RejectionReason = reason
	claim.ReviewerID = reviewerID
	claim.ReviewedAt = now()
	claim.UpdatedAt = claim.ReviewedAt
	return claim, nil
}

// loseReason inspects a claim after a lost compare-and-swap to report why:
// a terminal status means the claim was already decided, anything else is a
// concurrent change worth a reload-and-retry.
func (e *Engine) loseReason(ctx context.Context, claimID string) error {
	current, err := e.claims.Get(ctx, claimID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return fmt.Errorf("%w: claim already %s", ErrInvalidTransition, current.Status)
	}
	return fmt.Errorf("%w: claim was modified concurrently", ErrConflict)
}

func (e *Engine) openVerification(ctx context.Context, claim *models.Claim, reviewerID string) (*models.Claim, error) {
	if claim.Status.Terminal() {
		return nil, fmt.Errorf("%w: claim already %s", ErrInvalidTransition, claim.Status)
	}
	if claim.ThreadID != "" {
		// verification already open, nothing to do
		return claim, nil
	}

	won, err := e.claims.CompareAndSwap(ctx, claim.ID.Hex(), models.ClaimStatusSubmitted, ClaimPatch{
		Status:     models.ClaimStatusVerificationChat,
		ReviewerID: reviewerID,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, e.loseReason(ctx, claim.ID.Hex())
	}

	thread := &models.Thread{
		UserID:         claim.ClaimantID,
		Subject:        "Ownership verification",
		Type:           models.ThreadTypeClaimVerification,
		Status:         models.ThreadStatusOpen,
		RelatedClaimID: claim.ID.Hex(),
		RelatedItemID:  claim.ItemID,
		Messages: []models.Message{{
			ID:         uuid.NewString(),
			SenderID:   "system",
			SenderRole: models.SenderRoleSystem,
			Body:       "A staff member has opened this chat to verify your claim. Please share any details or evidence that prove ownership.",
			CreatedAt:  now(),
		}},
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	threadID, err := e.threads.Insert(ctx, thread)
	if err != nil {
		e.revertVerification(ctx, claim)
		return nil, err
	}
	if err := e.claims.SetThread(ctx, claim.ID.Hex(), threadID); err != nil {
		if closeErr := e.threads.Close(ctx, threadID); closeErr != nil {
			zap.S().Errorw("failed to close orphaned verification thread", "threadId", threadID, "error", closeErr)
		}
		e.revertVerification(ctx, claim)
		return nil, err
	}
	if err := e.items.UpdateStatus(ctx, claim.ItemID, models.ItemStatusPendingVerification, ViaClaimDecision); err != nil {
		if closeErr := e.threads.Close(ctx, threadID); closeErr != nil {
			zap.S().Errorw("failed to close orphaned verification thread", "threadId", threadID, "error", closeErr)
		}
		e.revertVerification(ctx, claim)
		return nil, err
	}

	e.notify(ctx, claim.ClaimantID, models.NotificationVerification, map[string]interface{}{
		"claimId":  claim.ID.Hex(),
		"itemId":   claim.ItemID,
		"threadId": threadID,
	})
	e.bus.Publish(Event{Type: EventClaimDecided, ClaimID: claim.ID.Hex(), ItemID: claim.ItemID, UserID: claim.ClaimantID})
	e.bus.Publish(Event{Type: EventThreadCreated, ThreadID: threadID, ClaimID: claim.ID.Hex(), UserID: claim.ClaimantID})

	claim.Status = models.ClaimStatusVerificationChat
	claim.ReviewerID = reviewerID
	claim.ThreadID = threadID
	claim.UpdatedAt = now()
	return claim, nil
}

func (e *Engine) revertVerification(ctx context.Context, claim *models.Claim) {
	if _, err := e.claims.CompareAndSwap(ctx, claim.ID.Hex(), models.ClaimStatusVerificationChat, ClaimPatch{
		Status:      models.ClaimStatusSubmitted,
		ReviewerID:  claim.ReviewerID,
		ClearReview: true,
	}); err != nil {
		zap.S().Errorw("failed to restore claim after verification setup failure",
			"claimId", claim.ID.Hex(), "error", err)
	}
}

// SelfResolveItem lets the owner of a lost report mark it found on their own.
// This is an item-level flow: no claim transitions, any linked threads close.
func (e *Engine) SelfResolveItem(ctx context.Context, itemID, ownerID string) (*models.Item, error) {
	item, err := e.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.ReporterID != ownerID {
		return nil, fmt.Errorf("%w: only the reporter can resolve their report", ErrUnauthorized)
	}
	if item.Kind != models.ItemKindLost {
		return nil, fmt.Errorf("%w: self-resolve applies to lost reports", ErrValidation)
	}
	if item.Status.Terminal() {
		return nil, fmt.Errorf("%w: item already %s", ErrInvalidTransition, item.Status)
	}

	if err := e.items.UpdateStatus(ctx, itemID, models.ItemStatusResolved, ViaSelfReport); err != nil {
		return nil, err
	}
	if err := e.threads.CloseByItem(ctx, itemID); err != nil {
		zap.S().Errorw("failed to close threads for self-resolved item", "itemId", itemID, "error", err)
	}

	e.bus.Publish(Event{Type: EventItemUpdated, ItemID: itemID, UserID: ownerID})
	item.Status = models.ItemStatusResolved
	return item, nil
}

// CreateSupportThread opens a plain support conversation, optionally tied to
// an item
func (e *Engine) CreateSupportThread(ctx context.Context, userID, subject, relatedItemID string) (*models.Thread, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	thread := &models.Thread{
		UserID:        userID,
		Subject:       subject,
		Type:          models.ThreadTypeSupport,
		Status:        models.ThreadStatusOpen,
		RelatedItemID: relatedItemID,
		Messages:      []models.Message{},
		CreatedAt:     now(),
		UpdatedAt:     now(),
	}
	id, err := e.threads.Insert(ctx, thread)
	if err != nil {
		return nil, err
	}
	e.bus.Publish(Event{Type: EventThreadCreated, ThreadID: id, UserID: userID})
	return thread, nil
}

// GetThread returns a thread with its message log
func (e *Engine) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	return e.threads.Get(ctx, id)
}

// ListThreadsByUser returns a user's threads
func (e *Engine) ListThreadsByUser(ctx context.Context, userID string) ([]models.Thread, error) {
	return e.threads.ListByUser(ctx, userID)
}

// AppendMessage adds a message to an open thread. Message bodies are opaque
// here, including any inline evidence markers.
func (e *Engine) AppendMessage(ctx context.Context, threadID, senderID string, role models.SenderRole, body, attachmentURL string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" && attachmentURL == "" {
		return nil, fmt.Errorf("%w: message body or attachment is required", ErrValidation)
	}

	thread, err := e.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status.Terminal() {
		return nil, fmt.Errorf("%w: thread %s", ErrClosed, threadID)
	}

	msg := models.Message{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		SenderRole:    role,
		Body:          body,
		AttachmentURL: attachmentURL,
		CreatedAt:     now(),
	}
	ok, err := e.threads.Append(ctx, threadID, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		// closed between the read above and the guarded append
		return nil, fmt.Errorf("%w: thread %s", ErrClosed, threadID)
	}

	// staff replies ping the thread owner
	if role == models.SenderRoleAdmin && thread.UserID != senderID {
		e.notify(ctx, thread.UserID, models.NotificationThreadMessage, map[string]interface{}{
			"threadId": threadID,
			"subject":  thread.Subject,
		})
	}
	e.bus.Publish(Event{Type: EventThreadMessage, ThreadID: threadID, UserID: senderID})
	return &msg, nil
}

// CloseThread closes a thread; closing an already closed thread is a no-op
func (e *Engine) CloseThread(ctx context.Context, threadID string) error {
	if _, err := e.threads.Get(ctx, threadID); err != nil {
		return err
	}
	if err := e.threads.Close(ctx, threadID); err != nil {
		return err
	}
	e.bus.Publish(Event{Type: EventThreadClosed, ThreadID: threadID})
	return nil
}
