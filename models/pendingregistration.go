package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pending registration statuses. A record is "live" until a reviewer claims
// it; "claimed" is a short transient state between the atomic claim and the
// follow-up writes, repaired by the scheduler sweep if the process dies in
// between.
const (
	RegistrationStatusLive    = "live"
	RegistrationStatusClaimed = "claimed"
)

// Resolver actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// PendingRegistration holds the structure for the pendingRegistrations
// collection in mongo. Records self-expire seven days after submission.
type PendingRegistration struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	RegisterNumber string             `json:"registerNumber" bson:"registerNumber"`
	Email          string             `json:"email" bson:"email"`
	PasswordHash   string             `json:"-" bson:"passwordHash"`
	Department     string             `json:"department" bson:"department"`
	Year           string             `json:"year" bson:"year"`
	PhotoURL       string             `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	Status         string             `json:"status" bson:"status"`
	ClaimedAction  string             `json:"claimedAction,omitempty" bson:"claimedAction,omitempty"`
	ClaimedAt      *time.Time         `json:"claimedAt,omitempty" bson:"claimedAt,omitempty"`
	ClaimedBy      string             `json:"claimedBy,omitempty" bson:"claimedBy,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	ExpiresAt      time.Time          `json:"expiresAt" bson:"expiresAt"`
}
