package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student holds the structure for the students collection in mongo. A student
// record only ever comes into existence through an approved registration.
type Student struct {
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// PendingRegistrationID records which registration this student was
	// promoted from. The approval sweep uses it to detect a student that was
	// created right before a crash left the source registration behind.
	PendingRegistrationID primitive.ObjectID `json:"pendingRegistrationId" bson:"pendingRegistrationId"`

	Name           string `json:"name" bson:"name"`
	RegisterNumber string `json:"registerNumber" bson:"registerNumber"`
	Email          string `json:"email" bson:"email"`
	PasswordHash   string `json:"-" bson:"passwordHash"`
	Department     string `json:"department" bson:"department"`
	Year           string `json:"year" bson:"year"`
	PhotoURL       string `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	ResumeURL      string `json:"resumeUrl,omitempty" bson:"resumeUrl,omitempty"`
	Phone          string `json:"phone,omitempty" bson:"phone,omitempty"`
	Status         string `json:"status" bson:"status"`

	ApprovedBy string    `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Student statuses
const (
	StudentStatusApproved = "approved"
	StudentStatusPlaced   = "placed"
)
