package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ItemKind distinguishes rider loss reports from registered found property
type ItemKind string

// Predefined ItemKind values
const (
	ItemKindLost  ItemKind = "lost"
	ItemKindFound ItemKind = "found"
)

// ItemStatus represents the lifecycle status of an item
type ItemStatus string

// Predefined ItemStatus values
const (
	ItemStatusReported            ItemStatus = "reported"
	ItemStatusListed              ItemStatus = "listed"
	ItemStatusMatchFound          ItemStatus = "match_found"
	ItemStatusPendingVerification ItemStatus = "pending_verification"
	ItemStatusResolved            ItemStatus = "resolved"
	ItemStatusClosed              ItemStatus = "closed"
)

// ValidItemStatuses returns all valid ItemStatus values
func ValidItemStatuses() []ItemStatus {
	return []ItemStatus{
		ItemStatusReported,
		ItemStatusListed,
		ItemStatusMatchFound,
		ItemStatusPendingVerification,
		ItemStatusResolved,
		ItemStatusClosed,
	}
}

// IsValid checks if the ItemStatus value is one of the predefined constants
func (s ItemStatus) IsValid() bool {
	for _, valid := range ValidItemStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is expected for the item
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusResolved || s == ItemStatusClosed
}

// String returns the string representation of the ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// Item holds the structure for the items collection in mongo
type Item struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Kind          ItemKind           `bson:"kind" json:"kind"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Category      string             `bson:"category" json:"category"`
	Station       string             `bson:"station" json:"station"`
	PhotoURL      string             `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	ReporterID    string             `bson:"reporterId" json:"reporterId"`
	Status        ItemStatus         `bson:"status" json:"status"`
	MatchedItemID string             `bson:"matchedItemId,omitempty" json:"matchedItemId,omitempty"`
	CreatedAt     primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt     primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}
