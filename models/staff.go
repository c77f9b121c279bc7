package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// StaffUser represents a lost-and-found desk employee with triage permissions
type StaffUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Active       bool               `bson:"active" json:"active"`
	Roles        []string           `bson:"roles" json:"roles"`
	Stations     []string           `bson:"stations,omitempty" json:"stations,omitempty"`
	CreatedAt    primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt    primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}

// StaffPasswordReset stores password reset tokens for staff accounts
type StaffPasswordReset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StaffID   primitive.ObjectID `bson:"staffId" json:"staffId"`
	TokenHash string             `bson:"tokenHash" json:"-"`
	ExpiresAt primitive.DateTime `bson:"expiresAt" json:"expiresAt"`
	UsedAt    primitive.DateTime `bson:"usedAt,omitempty" json:"usedAt,omitempty"`
	CreatedAt primitive.DateTime `bson:"createdAt" json:"createdAt"`
}
