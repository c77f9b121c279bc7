package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/notifications"
	"github.com/metrofound/lostfound-api/resolution"
)

// listingRetention is how long a found listing may sit unclaimed before the
// nightly job closes it
const listingRetention = 90 * 24 * time.Hour

// maxRedeliveryAttempts caps how often an undelivered notification is retried
const maxRedeliveryAttempts = 10

// Scheduler handles periodic background jobs for listing expiry and
// notification redelivery
type Scheduler struct {
	cron       *cron.Cron
	Engine     *resolution.Engine
	ItemDB     databases.ItemDatabase
	ClaimDB    databases.ClaimDatabase
	NotifDB    databases.NotificationDatabase
	Dispatcher *notifications.Dispatcher
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	engine *resolution.Engine,
	itemDB databases.ItemDatabase,
	claimDB databases.ClaimDatabase,
	notifDB databases.NotificationDatabase,
	dispatcher *notifications.Dispatcher,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Engine:     engine,
		ItemDB:     itemDB,
		ClaimDB:    claimDB,
		NotifDB:    notifDB,
		Dispatcher: dispatcher,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Expire stale found listings nightly at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.expireStaleListings)
	if err != nil {
		zap.S().Errorw("failed to register listing expiry job", "error", err)
	}

	// Retry undelivered notifications every 5 minutes
	_, err = s.cron.AddFunc("*/5 * * * *", s.redeliverNotifications)
	if err != nil {
		zap.S().Errorw("failed to register notification redelivery job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Lost and found scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Lost and found scheduler stopped")
}

// expireStaleListings closes found listings that sat unclaimed past the
// retention window. Listings with an active claim are left alone; the claim
// decision settles them.
func (s *Scheduler) expireStaleListings() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "listing_expiry_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for listing expiry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Listing expiry job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "listing_expiry_job", s.instanceID)

	cutoff := time.Now().Add(-listingRetention)

	zap.S().Infow("Running listing expiry job", "instance", s.instanceID, "cutoff", cutoff)

	staleFilter := bson.M{
		"kind":      models.ItemKindFound,
		"status":    models.ItemStatusListed,
		"createdAt": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	}

	staleItems, err := s.ItemDB.Find(ctx, staleFilter)
	if err != nil {
		zap.S().Errorw("failed to find stale listings", "error", err)
		return
	}

	expired := 0
	for _, item := range staleItems {
		active, err := s.ClaimDB.CountDocuments(ctx, bson.M{
			"itemId": item.ID.Hex(),
			"status": bson.M{"$in": []models.ClaimStatus{
				models.ClaimStatusSubmitted,
				models.ClaimStatusVerificationChat,
			}},
		})
		if err != nil {
			zap.S().Errorw("failed to count active claims", "itemId", item.ID.Hex(), "error", err)
			continue
		}
		if active > 0 {
			continue
		}

		_, err = s.ItemDB.UpdateOne(ctx,
			bson.M{"_id": item.ID, "status": models.ItemStatusListed},
			bson.M{"$set": bson.M{
				"status":    models.ItemStatusClosed,
				"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
			}})
		if err != nil {
			zap.S().Errorw("failed to close stale listing", "itemId", item.ID.Hex(), "error", err)
			continue
		}
		expired++

		if s.Dispatcher != nil && item.ReporterID != "" {
			s.Dispatcher.Notify(ctx, item.ReporterID, models.NotificationItemExpired, map[string]interface{}{
				"itemId":    item.ID.Hex(),
				"itemTitle": item.Title,
			})
		}
	}

	zap.S().Infow("Listing expiry job finished", "checked", len(staleItems), "expired", expired)
}

// redeliverNotifications retries the websocket push for notifications that
// never reached the user
func (s *Scheduler) redeliverNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "notification_redelivery_job", s.instanceID, 5*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for redelivery job", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "notification_redelivery_job", s.instanceID)

	pending, err := s.NotifDB.Find(ctx, bson.M{
		"delivered": false,
		"attempts":  bson.M{"$lt": maxRedeliveryAttempts},
	})
	if err != nil {
		zap.S().Errorw("failed to find pending notifications", "error", err)
		return
	}

	delivered := 0
	for _, notification := range pending {
		if s.Dispatcher.Redeliver(ctx, notification) {
			delivered++
		}
	}

	if len(pending) > 0 {
		zap.S().Infow("Notification redelivery job finished", "pending", len(pending), "delivered", delivered)
	}
}
