package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NotificationKind classifies what triggered a notification
type NotificationKind string

// Predefined NotificationKind values
const (
	NotificationClaimSubmitted NotificationKind = "claim_submitted"
	NotificationClaimApproved  NotificationKind = "claim_approved"
	NotificationClaimRejected  NotificationKind = "claim_rejected"
	NotificationVerification   NotificationKind = "claim_verification"
	NotificationThreadMessage  NotificationKind = "thread_message"
	NotificationItemExpired    NotificationKind = "item_expired"
)

// Notification holds the structure for the notifications collection in mongo.
// Delivered tracks whether a live push reached the user; undelivered
// notifications are picked up again by the scheduler.
type Notification struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID    string                 `bson:"userId" json:"userId"`
	Kind      NotificationKind       `bson:"kind" json:"kind"`
	Title     string                 `bson:"title" json:"title"`
	Body      string                 `bson:"body" json:"body"`
	Payload   map[string]interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
	Read      bool                   `bson:"read" json:"read"`
	Delivered bool                   `bson:"delivered" json:"delivered"`
	Attempts  int                    `bson:"attempts" json:"attempts"`
	CreatedAt primitive.DateTime     `bson:"createdAt" json:"createdAt"`
}
