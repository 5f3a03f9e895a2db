package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OtpPurpose scopes a one-time code to the action it proves ownership for. A
// code issued for one purpose can never be redeemed for another, even for the
// same identifier.
type OtpPurpose string

// Supported purposes
const (
	PurposeRegister       OtpPurpose = "register"
	PurposeEmailChange    OtpPurpose = "email_change"
	PurposeForgotPassword OtpPurpose = "forgot_password"
	PurposePhoneChange    OtpPurpose = "phone_change"
)

// ValidOtpPurpose reports whether s is one of the supported purposes.
func ValidOtpPurpose(s string) bool {
	switch OtpPurpose(s) {
	case PurposeRegister, PurposeEmailChange, PurposeForgotPassword, PurposePhoneChange:
		return true
	}
	return false
}

// OtpChallenge holds the structure for the otpChallenges collection in mongo.
// At most one active challenge exists per (identifier, purpose) pair; issuing
// a new code replaces any prior record for that pair.
type OtpChallenge struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Identifier string             `json:"identifier" bson:"identifier"`
	Purpose    OtpPurpose         `json:"purpose" bson:"purpose"`
	Code       string             `json:"code" bson:"code"`
	Attempts   int                `json:"attempts" bson:"attempts"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	ExpiresAt  time.Time          `json:"expiresAt" bson:"expiresAt"`
}
