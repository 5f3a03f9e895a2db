package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Representative holds the structure for the representatives collection in
// mongo. Reviewers are scoped to a single department+year; every
// representative with a contact address receives an approval link when a
// registration for their scope is submitted.
type Representative struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	Department   string             `json:"department" bson:"department"`
	Year         string             `json:"year" bson:"year"`
	Role         string             `json:"role" bson:"role"`
	Active       bool               `json:"active" bson:"active"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}

// Representative roles
const (
	RoleRepresentative = "representative"
	RoleAdmin          = "admin"
)
