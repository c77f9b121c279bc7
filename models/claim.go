package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ClaimStatus represents the state of a claim in its review lifecycle
type ClaimStatus string

// Predefined ClaimStatus values
const (
	ClaimStatusSubmitted        ClaimStatus = "submitted"
	ClaimStatusVerificationChat ClaimStatus = "verification-chat"
	ClaimStatusApproved         ClaimStatus = "approved"
	ClaimStatusRejected         ClaimStatus = "rejected"
)

// ValidClaimStatuses returns all valid ClaimStatus values
func ValidClaimStatuses() []ClaimStatus {
	return []ClaimStatus{
		ClaimStatusSubmitted,
		ClaimStatusVerificationChat,
		ClaimStatusApproved,
		ClaimStatusRejected,
	}
}

// IsValid checks if the ClaimStatus value is one of the predefined constants
func (s ClaimStatus) IsValid() bool {
	for _, valid := range ValidClaimStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// Terminal reports whether the claim can no longer transition
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

// String returns the string representation of the ClaimStatus
func (s ClaimStatus) String() string {
	return string(s)
}

// Claim holds the structure for the claims collection in mongo
type Claim struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	ItemID          string             `bson:"itemId" json:"itemId"`
	ClaimantID      string             `bson:"claimantId" json:"claimantId"`
	Reason          string             `bson:"reason" json:"reason"`
	Proof           string             `bson:"proof,omitempty" json:"proof,omitempty"`
	Status          ClaimStatus        `bson:"status" json:"status"`
	RejectionReason string             `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	ReviewerID      string             `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	ThreadID        string             `bson:"threadId,omitempty" json:"threadId,omitempty"`
	CreatedAt       primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt       primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
	ReviewedAt      primitive.DateTime `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}
