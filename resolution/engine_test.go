package resolution_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/resolution"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []models.NotificationKind
	users []string
}

func (r *recordingNotifier) Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.users = append(r.users, userID)
}

func newTestEngine() (*resolution.Engine, *resolution.MemoryStore, *recordingNotifier) {
	store := resolution.NewMemoryStore()
	notifier := &recordingNotifier{}
	engine := resolution.NewEngine(store.Items(), store.Claims(), store.Threads(), notifier)
	return engine, store, notifier
}

func createFoundItem(t *testing.T, engine *resolution.Engine) *models.Item {
	t.Helper()
	item, err := engine.CreateItem(context.Background(), &models.Item{
		Kind:       models.ItemKindFound,
		Title:      "Black umbrella",
		Category:   "accessories",
		Station:    "central",
		ReporterID: "staff-1",
	})
	require.NoError(t, err)
	return item
}

func createLostItem(t *testing.T, engine *resolution.Engine) *models.Item {
	t.Helper()
	item, err := engine.CreateItem(context.Background(), &models.Item{
		Kind:       models.ItemKindLost,
		Title:      "Blue backpack",
		Category:   "bags",
		Station:    "north",
		ReporterID: "rider-7",
	})
	require.NoError(t, err)
	return item
}

func TestCreateItemStatuses(t *testing.T) {
	engine, _, _ := newTestEngine()

	found := createFoundItem(t, engine)
	assert.Equal(t, models.ItemStatusListed, found.Status)

	lost := createLostItem(t, engine)
	assert.Equal(t, models.ItemStatusReported, lost.Status)

	// a lost report opens a support thread for the reporter
	threads, err := engine.ListThreadsByUser(context.Background(), "rider-7")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, models.ThreadTypeSupport, threads[0].Type)
	assert.Equal(t, lost.ID.Hex(), threads[0].RelatedItemID)
	require.Len(t, threads[0].Messages, 1)
	assert.Equal(t, models.SenderRoleSystem, threads[0].Messages[0].SenderRole)
}

func TestCreateItemValidation(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.CreateItem(context.Background(), &models.Item{Kind: models.ItemKindFound, ReporterID: "x"})
	assert.True(t, errors.Is(err, resolution.ErrValidation))

	_, err = engine.CreateItem(context.Background(), &models.Item{Kind: "misplaced", Title: "Hat", ReporterID: "x"})
	assert.True(t, errors.Is(err, resolution.ErrValidation))
}

func TestCreateClaim(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "it has my initials on the handle", "")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusSubmitted, claim.Status)

	// submission does not touch the item status
	got, err := engine.GetItem(context.Background(), item.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusListed, got.Status)
}

func TestCreateClaimRequiresReason(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	_, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "   ", "")
	assert.True(t, errors.Is(err, resolution.ErrValidation))
}

func TestCreateClaimUnknownItem(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.CreateClaim(context.Background(), "64b0c3f9a1b2c3d4e5f60718", "rider-1", "mine", "")
	assert.True(t, errors.Is(err, resolution.ErrNotFound))
}

func TestCreateClaimSingleActive(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	_, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	_, err = engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-2", "no, mine", "")
	assert.True(t, errors.Is(err, resolution.ErrConflict))
}

func TestCreateClaimAfterRejectionAllowed(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionReject, "no proof", "staff-9")
	require.NoError(t, err)

	// a rejected claim is no longer active, so another rider may claim
	_, err = engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-2", "serial number matches", "")
	assert.NoError(t, err)
}

func TestApproveClaim(t *testing.T) {
	engine, _, notifier := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	decided, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-9")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, decided.Status)
	assert.Equal(t, "staff-9", decided.ReviewerID)

	got, err := engine.GetItem(context.Background(), item.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusResolved, got.Status)

	assert.Contains(t, notifier.kinds, models.NotificationClaimApproved)
	assert.Contains(t, notifier.users, "rider-1")
}

func TestRejectClaimRequiresReason(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionReject, "", "staff-9")
	assert.True(t, errors.Is(err, resolution.ErrValidation))
}

func TestRejectClaimRestoresItem(t *testing.T) {
	engine, _, notifier := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	// move through verification so the item leaves listed first
	withChat, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionOpenVerification, "", "staff-9")
	require.NoError(t, err)

	got, err := engine.GetItem(context.Background(), item.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPendingVerification, got.Status)

	decided, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionReject, "could not verify", "staff-9")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, decided.Status)
	assert.Equal(t, "could not verify", decided.RejectionReason)

	// rejection returns the item to the listed pool
	got, err = engine.GetItem(context.Background(), item.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusListed, got.Status)

	// the verification thread is closed with the decision
	thread, err := engine.GetThread(context.Background(), withChat.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadStatusClosed, thread.Status)

	assert.Contains(t, notifier.kinds, models.NotificationClaimRejected)
}

func TestOpenVerification(t *testing.T) {
	engine, _, notifier := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	decided, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionOpenVerification, "", "staff-9")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusVerificationChat, decided.Status)
	require.NotEmpty(t, decided.ThreadID)

	thread, err := engine.GetThread(context.Background(), decided.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadTypeClaimVerification, thread.Type)
	assert.Equal(t, claim.ID.Hex(), thread.RelatedClaimID)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, models.SenderRoleSystem, thread.Messages[0].SenderRole)

	got, err := engine.GetItem(context.Background(), item.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPendingVerification, got.Status)

	assert.Contains(t, notifier.kinds, models.NotificationVerification)
}

func TestOpenVerificationIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	first, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionOpenVerification, "", "staff-9")
	require.NoError(t, err)

	second, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionOpenVerification, "", "staff-9")
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	// still exactly one thread for the claimant
	threads, err := engine.ListThreadsByUser(context.Background(), "rider-1")
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestDecideTerminalClaim(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-9")
	require.NoError(t, err)

	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionReject, "changed my mind", "staff-9")
	assert.True(t, errors.Is(err, resolution.ErrInvalidTransition))

	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionOpenVerification, "", "staff-9")
	assert.True(t, errors.Is(err, resolution.ErrInvalidTransition))
}

func TestConcurrentDecisionsExactlyOneWins(t *testing.T) {
	for i := 0; i < 25; i++ {
		engine, _, _ := newTestEngine()
		item := createFoundItem(t, engine)

		claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-a")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionReject, "not yours", "staff-b")
		}()
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.True(t, errors.Is(err, resolution.ErrConflict) || errors.Is(err, resolution.ErrInvalidTransition),
				"loser got unexpected error: %v", err)
		}
		require.Equal(t, 1, winners, "exactly one decision must win")

		// the stored claim is terminal and the item matches the winner
		final, err := engine.GetClaim(context.Background(), claim.ID.Hex())
		require.NoError(t, err)
		require.True(t, final.Status.Terminal())

		gotItem, err := engine.GetItem(context.Background(), item.ID.Hex())
		require.NoError(t, err)
		if final.Status == models.ClaimStatusApproved {
			assert.Equal(t, models.ItemStatusResolved, gotItem.Status)
		} else {
			assert.Equal(t, models.ItemStatusListed, gotItem.Status)
		}
	}
}

func TestSelfResolve(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createLostItem(t, engine)

	resolved, err := engine.SelfResolveItem(context.Background(), item.ID.Hex(), "rider-7")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusResolved, resolved.Status)

	// the support thread opened with the report closes with it
	threads, err := engine.ListThreadsByUser(context.Background(), "rider-7")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, models.ThreadStatusClosed, threads[0].Status)
}

func TestSelfResolveGuards(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createLostItem(t, engine)

	_, err := engine.SelfResolveItem(context.Background(), item.ID.Hex(), "someone-else")
	assert.True(t, errors.Is(err, resolution.ErrUnauthorized))

	found := createFoundItem(t, engine)
	_, err = engine.SelfResolveItem(context.Background(), found.ID.Hex(), "staff-1")
	assert.True(t, errors.Is(err, resolution.ErrValidation))

	_, err = engine.SelfResolveItem(context.Background(), item.ID.Hex(), "rider-7")
	require.NoError(t, err)
	_, err = engine.SelfResolveItem(context.Background(), item.ID.Hex(), "rider-7")
	assert.True(t, errors.Is(err, resolution.ErrInvalidTransition))
}

func TestMarkMatch(t *testing.T) {
	engine, _, notifier := newTestEngine()
	lost := createLostItem(t, engine)
	found := createFoundItem(t, engine)

	matched, err := engine.MarkMatch(context.Background(), lost.ID.Hex(), found.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusMatchFound, matched.Status)
	assert.Equal(t, found.ID.Hex(), matched.MatchedItemID)
	assert.Contains(t, notifier.users, "rider-7")

	// a matched report cannot be matched again
	_, err = engine.MarkMatch(context.Background(), lost.ID.Hex(), found.ID.Hex())
	assert.True(t, errors.Is(err, resolution.ErrInvalidTransition))
}

func TestDeleteItemWithActiveClaim(t *testing.T) {
	engine, _, _ := newTestEngine()
	item := createFoundItem(t, engine)

	_, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)

	err = engine.DeleteItem(context.Background(), item.ID.Hex())
	assert.True(t, errors.Is(err, resolution.ErrConflict))
}

func TestAppendMessage(t *testing.T) {
	engine, _, notifier := newTestEngine()

	thread, err := engine.CreateSupportThread(context.Background(), "rider-1", "Where is my scarf", "")
	require.NoError(t, err)

	msg, err := engine.AppendMessage(context.Background(), thread.ID.Hex(), "rider-1", models.SenderRoleUser, "Any updates?", "")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	// staff reply notifies the owner
	_, err = engine.AppendMessage(context.Background(), thread.ID.Hex(), "staff-9", models.SenderRoleAdmin, "Checking the north depot.", "")
	require.NoError(t, err)
	assert.Contains(t, notifier.kinds, models.NotificationThreadMessage)

	got, err := engine.GetThread(context.Background(), thread.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestAppendMessageValidation(t *testing.T) {
	engine, _, _ := newTestEngine()

	thread, err := engine.CreateSupportThread(context.Background(), "rider-1", "Help", "")
	require.NoError(t, err)

	_, err = engine.AppendMessage(context.Background(), thread.ID.Hex(), "rider-1", models.SenderRoleUser, "  ", "")
	assert.True(t, errors.Is(err, resolution.ErrValidation))

	// attachment without body is fine
	_, err = engine.AppendMessage(context.Background(), thread.ID.Hex(), "rider-1", models.SenderRoleUser, "", "https://cdn.example/receipt.jpg")
	assert.NoError(t, err)
}

func TestAppendMessageToClosedThread(t *testing.T) {
	engine, _, _ := newTestEngine()

	thread, err := engine.CreateSupportThread(context.Background(), "rider-1", "Help", "")
	require.NoError(t, err)

	require.NoError(t, engine.CloseThread(context.Background(), thread.ID.Hex()))

	_, err = engine.AppendMessage(context.Background(), thread.ID.Hex(), "rider-1", models.SenderRoleUser, "hello?", "")
	assert.True(t, errors.Is(err, resolution.ErrClosed))
}

func TestCloseThreadIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()

	thread, err := engine.CreateSupportThread(context.Background(), "rider-1", "Help", "")
	require.NoError(t, err)

	require.NoError(t, engine.CloseThread(context.Background(), thread.ID.Hex()))
	assert.NoError(t, engine.CloseThread(context.Background(), thread.ID.Hex()))
}

func TestEventsPublished(t *testing.T) {
	engine, _, _ := newTestEngine()

	events, unsubscribe := engine.Events().Subscribe(nil)
	defer unsubscribe()

	item := createFoundItem(t, engine)
	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-1", "mine", "")
	require.NoError(t, err)
	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-9")
	require.NoError(t, err)

	seen := map[resolution.EventType]bool{}
	for len(events) > 0 {
		ev := <-events
		seen[ev.Type] = true
	}
	assert.True(t, seen[resolution.EventItemCreated])
	assert.True(t, seen[resolution.EventClaimCreated])
	assert.True(t, seen[resolution.EventClaimDecided])
}

func TestStatusForMapping(t *testing.T) {
	assert.Equal(t, 404, resolution.StatusFor(resolution.ErrNotFound))
	assert.Equal(t, 409, resolution.StatusFor(resolution.ErrConflict))
	assert.Equal(t, 422, resolution.StatusFor(resolution.ErrInvalidTransition))
	assert.Equal(t, 400, resolution.StatusFor(resolution.ErrValidation))
	assert.Equal(t, 409, resolution.StatusFor(resolution.ErrClosed))
	assert.Equal(t, 403, resolution.StatusFor(resolution.ErrUnauthorized))
	assert.Equal(t, 500, resolution.StatusFor(errors.New("boom")))
}

type failingItemStore struct {
	resolution.ItemStore
	failUpdates bool
}

func (f *failingItemStore) UpdateStatus(ctx context.Context, id string, to models.ItemStatus, via resolution.StatusProvenance) error {
	if f.failUpdates {
		return errors.New("item backend unavailable")
	}
	return f.ItemStore.UpdateStatus(ctx, id, to, via)
}

func TestFailedDecisionLeavesNoReviewResidue(t *testing.T) {
	store := resolution.NewMemoryStore()
	items := &failingItemStore{ItemStore: store.Items()}
	engine := resolution.NewEngine(items, store.Claims(), store.Threads(), nil)

	item := createFoundItem(t, engine)
	claim, err := engine.CreateClaim(context.Background(), item.ID.Hex(), "rider-7", "mine", "")
	require.NoError(t, err)

	items.failUpdates = true
	_, err = engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-9")
	require.Error(t, err)

	// the rolled-back claim carries nothing from the undone decision
	got, err := store.Claims().Get(context.Background(), claim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusSubmitted, got.Status)
	assert.Empty(t, got.ReviewerID)
	assert.Zero(t, got.ReviewedAt)

	// and the decision can be retried whole once the backend recovers
	items.failUpdates = false
	decided, err := engine.DecideClaim(context.Background(), claim.ID.Hex(), resolution.DecisionApprove, "", "staff-9")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusApproved, decided.Status)
	assert.Equal(t, "staff-9", decided.ReviewerID)
}
