package notifications

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
	templates "github.com/metrofound/lostfound-api/templates/html"
)

// emailKinds are the notification kinds that also go out as email. Everything
// else is socket-and-inbox only.
var emailKinds = map[models.NotificationKind]bool{
	models.NotificationClaimApproved: true,
	models.NotificationClaimRejected: true,
	models.NotificationVerification:  true,
	models.NotificationItemExpired:   true,
}

// Dispatcher persists every notification and then makes a best-effort live
// delivery: a websocket push when the user is connected, plus email for
// decision outcomes. Persist-first means a failed push leaves the document
// undelivered for the scheduler to retry; delivery never fails the operation
// that triggered it.
type Dispatcher struct {
	DB     databases.NotificationDatabase
	UserDB databases.UserDatabase
	Hub    *Hub
	Mailer Mailer
}

// NewDispatcher wires a dispatcher. Hub and Mailer may be nil; delivery over
// the missing channel is skipped.
func NewDispatcher(db databases.NotificationDatabase, userDB databases.UserDatabase, hub *Hub, mailer Mailer) *Dispatcher {
	return &Dispatcher{DB: db, UserDB: userDB, Hub: hub, Mailer: mailer}
}

// Notify records and delivers a notification to one user
func (d *Dispatcher) Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]interface{}) {
	title, body := render(kind, payload)
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	if _, err := d.DB.InsertOne(ctx, notification); err != nil {
		zap.S().Errorw("failed to persist notification", "userId", userID, "kind", kind, "error", err)
		return
	}

	delivered := false
	if d.Hub != nil && d.Hub.Push(userID, "new_notification", notification) {
		delivered = true
	}

	if d.Mailer != nil && emailKinds[kind] {
		if email, err := d.lookupEmail(ctx, userID); err == nil && email != "" {
			htmlContent := templates.RenderGenericEmail(title, body)
			if err := d.Mailer.Send(email, title, body, htmlContent); err == nil {
				delivered = true
			}
		}
	}

	if delivered {
		d.markDelivered(ctx, notification.ID)
	}
}

// Redeliver retries the websocket push for one pending notification and
// returns whether it landed. The scheduler drives this.
func (d *Dispatcher) Redeliver(ctx context.Context, notification models.Notification) bool {
	if d.Hub == nil || !d.Hub.Push(notification.UserID, "new_notification", notification) {
		_, err := d.DB.UpdateOne(ctx,
			bson.M{"_id": notification.ID},
			bson.M{"$inc": bson.M{"attempts": 1}})
		if err != nil {
			zap.S().Errorw("failed to record redelivery attempt", "notificationId", notification.ID.Hex(), "error", err)
		}
		return false
	}
	d.markDelivered(ctx, notification.ID)
	return true
}

func (d *Dispatcher) markDelivered(ctx context.Context, id primitive.ObjectID) {
	_, err := d.DB.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"delivered": true}, "$inc": bson.M{"attempts": 1}})
	if err != nil {
		zap.S().Errorw("failed to mark notification delivered", "notificationId", id.Hex(), "error", err)
	}
}

func (d *Dispatcher) lookupEmail(ctx context.Context, userID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", err
	}
	user, err := d.UserDB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func render(kind models.NotificationKind, payload map[string]interface{}) (title, body string) {
	itemTitle, _ := payload["itemTitle"].(string)
	switch kind {
	case models.NotificationClaimSubmitted:
		return "New claim submitted", fmt.Sprintf("A claim was submitted for %q and is awaiting review.", itemTitle)
	case models.NotificationClaimApproved:
		return "Your claim was approved", fmt.Sprintf("Your claim for %q was approved. Visit the station or arrange a courier return to collect it.", itemTitle)
	case models.NotificationClaimRejected:
		reason, _ := payload["reason"].(string)
		if reason == "" {
			return "Your claim was rejected", fmt.Sprintf("Your claim for %q was rejected.", itemTitle)
		}
		return "Your claim was rejected", fmt.Sprintf("Your claim for %q was rejected: %s", itemTitle, reason)
	case models.NotificationVerification:
		return "Verification needed", fmt.Sprintf("Staff opened a verification conversation about your claim for %q. Please respond with proof of ownership.", itemTitle)
	case models.NotificationThreadMessage:
		return "New message", "You have a new message from our support staff."
	case models.NotificationItemExpired:
		return "Listing expired", fmt.Sprintf("The listing for %q expired and was closed.", itemTitle)
	default:
		return string(kind), ""
	}
}
