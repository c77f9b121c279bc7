package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ThreadType distinguishes plain support threads from claim verification chats
type ThreadType string

// Predefined ThreadType values
const (
	ThreadTypeSupport           ThreadType = "support"
	ThreadTypeClaimVerification ThreadType = "claim_verification"
)

// ThreadStatus represents the state of a support thread
type ThreadStatus string

// Predefined ThreadStatus values
const (
	ThreadStatusOpen       ThreadStatus = "open"
	ThreadStatusInProgress ThreadStatus = "in-progress"
	ThreadStatusClosed     ThreadStatus = "closed"
)

// Terminal reports whether the thread no longer accepts messages
func (s ThreadStatus) Terminal() bool {
	return s == ThreadStatusClosed
}

// String returns the string representation of the ThreadStatus
func (s ThreadStatus) String() string {
	return string(s)
}

// SenderRole identifies who authored a message
type SenderRole string

// Predefined SenderRole values
const (
	SenderRoleUser   SenderRole = "user"
	SenderRoleAdmin  SenderRole = "admin"
	SenderRoleSystem SenderRole = "system"
)

// Message is a single entry in a thread's append-only message log.
// The body may carry inline evidence markers (e.g. a CCTV clip reference);
// those are opaque text here and are interpreted by the rendering clients.
type Message struct {
	ID            string             `bson:"id" json:"id"`
	SenderID      string             `bson:"senderId" json:"senderId"`
	SenderRole    SenderRole         `bson:"senderRole" json:"senderRole"`
	Body          string             `bson:"body" json:"body"`
	AttachmentURL string             `bson:"attachmentUrl,omitempty" json:"attachmentUrl,omitempty"`
	Read          bool               `bson:"read" json:"read"`
	CreatedAt     primitive.DateTime `bson:"createdAt" json:"createdAt"`
}

// Thread holds the structure for the threads collection in mongo.
// Messages are embedded as an ordered array, append-only.
type Thread struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID         string             `bson:"userId" json:"userId"`
	Subject        string             `bson:"subject" json:"subject"`
	Type           ThreadType         `bson:"type" json:"type"`
	Status         ThreadStatus       `bson:"status" json:"status"`
	RelatedClaimID string             `bson:"relatedClaimId,omitempty" json:"relatedClaimId,omitempty"`
	RelatedItemID  string             `bson:"relatedItemId,omitempty" json:"relatedItemId,omitempty"`
	Messages       []Message          `bson:"messages" json:"messages"`
	CreatedAt      primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt      primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}
