package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/models"
)

// Resolution failure taxonomy. All user-facing; store failures surface as
// wrapped errors instead.
var (
	// ErrAlreadyResolved means the registration was already approved, rejected
	// or expired before this action arrived. Repeated clicks land here, so the
	// link is idempotent from the reviewer's point of view.
	ErrAlreadyResolved = errors.New("registration has already been resolved")
	// ErrScopeMismatch means the token is genuine but no longer matches the
	// live registration's department/year.
	ErrScopeMismatch = errors.New("approval link does not match this registration")
	// ErrInvalidAction means the action query parameter was neither approve nor reject.
	ErrInvalidAction = errors.New("action must be approve or reject")
)

// Outcome describes a successful resolution
type Outcome struct {
	Action       string                      `json:"action"`
	Registration *models.PendingRegistration `json:"-"`
	StudentID    primitive.ObjectID          `json:"studentId,omitempty"`
	ResolvedBy   string                      `json:"resolvedBy"`
}

// Resolver consumes approval tokens and performs the atomic check-and-transition
// on the pending registration store. It is the only writer that moves a live
// registration to a terminal state.
type Resolver struct {
	Tokens   *TokenService
	PRDB     databases.PendingRegistrationDatabase
	SDB      databases.StudentDatabase
	Notifier *Notifier

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewResolver wires a resolver from its collaborators
func NewResolver(tokens *TokenService, prdb databases.PendingRegistrationDatabase, sdb databases.StudentDatabase, notifier *Notifier) *Resolver {
	return &Resolver{Tokens: tokens, PRDB: prdb, SDB: sdb, Notifier: notifier, Now: time.Now}
}

// Resolve validates the token, atomically claims the registration, applies the
// action and fans out notifications. With N racing reviewers exactly one call
// returns an Outcome; the rest see ErrAlreadyResolved.
func (r *Resolver) Resolve(ctx context.Context, tokenString, action string) (*Outcome, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, ErrInvalidAction
	}

	payload, err := r.Tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(payload.PendingRegistrationID)
	if err != nil {
		return nil, ErrLinkInvalid
	}

	now := r.Now()
	registration, err := r.PRDB.Claim(ctx, id, payload.Department, payload.Year, action, payload.ReviewerID, now)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to claim registration: %w", err)
		}
		return nil, r.classifyMiss(ctx, id, payload, now)
	}

	outcome := &Outcome{Action: action, Registration: registration, ResolvedBy: payload.ReviewerName}

	if action == models.ActionApprove {
		studentID, err := r.promote(ctx, registration, payload, now)
		if err != nil {
			return nil, err
		}
		outcome.StudentID = studentID
	}

	if err := r.PRDB.DeleteByID(ctx, id); err != nil {
		// The claim already removed the record from the live set, so the
		// outcome stands; the reconciliation sweep will finish the delete.
		zap.S().Errorw("failed to delete claimed registration, sweep will reconcile",
			"registrationId", id.Hex(), "error", err)
	}

	r.Notifier.ResolvedAsync(registration, action, payload)

	return outcome, nil
}

// classifyMiss decides which user-facing error a failed claim maps to. The
// follow-up read is advisory only: whatever it sees, the claim itself has
// already settled who won.
func (r *Resolver) classifyMiss(ctx context.Context, id primitive.ObjectID, payload *TokenPayload, now time.Time) error {
	registration, err := r.PRDB.FindOneByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("failed to look up registration: %w", err)
	}

	if registration.Status == models.RegistrationStatusLive && now.Before(registration.ExpiresAt) &&
		(registration.Department != payload.Department || registration.Year != payload.Year) {
		return ErrScopeMismatch
	}
	return ErrAlreadyResolved
}

// promote creates the approved student for a claimed registration. The insert
// is idempotent on the source registration: if a previous attempt created the
// student and crashed before deleting the registration, the existing record is
// reused instead of duplicated.
func (r *Resolver) promote(ctx context.Context, registration *models.PendingRegistration, payload *TokenPayload, now time.Time) (primitive.ObjectID, error) {
	existing, err := r.SDB.FindOne(ctx, bson.M{"pendingRegistrationId": registration.ID})
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return primitive.NilObjectID, fmt.Errorf("failed to check for existing student: %w", err)
	}

	student := models.Student{
		PendingRegistrationID: registration.ID,
		Name:                  registration.Name,
		RegisterNumber:        registration.RegisterNumber,
		Email:                 registration.Email,
		PasswordHash:          registration.PasswordHash,
		Department:            registration.Department,
		Year:                  registration.Year,
		PhotoURL:              registration.PhotoURL,
		Status:                models.StudentStatusApproved,
		ApprovedBy:            payload.ReviewerName,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	studentID, err := r.SDB.InsertOne(ctx, student)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to create student: %w", err)
	}
	return studentID, nil
}

// StatusView is the redacted state returned by the token-bound status lookup
type StatusView struct {
	State          string `json:"state"`
	Name           string `json:"name,omitempty"`
	RegisterNumber string `json:"registerNumber,omitempty"`
	Department     string `json:"department,omitempty"`
	Year           string `json:"year,omitempty"`
}

// Registration states reported by Status
const (
	StatePending  = "pending"
	StateApproved = "approved"
	StateResolved = "resolved"
)

// Status answers a token-bound read-only query about the registration bound to
// the token. Rejected and expired registrations are indistinguishable: both
// report "resolved" with no identity attached.
func (r *Resolver) Status(ctx context.Context, tokenString string) (*StatusView, error) {
	payload, err := r.Tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(payload.PendingRegistrationID)
	if err != nil {
		return nil, ErrLinkInvalid
	}

	now := r.Now()
	registration, err := r.PRDB.FindLive(ctx, bson.M{"_id": id}, now)
	if err == nil {
		return &StatusView{
			State:          StatePending,
			Name:           registration.Name,
			RegisterNumber: redactRegisterNumber(registration.RegisterNumber),
			Department:     registration.Department,
			Year:           registration.Year,
		}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to look up registration: %w", err)
	}

	student, err := r.SDB.FindOne(ctx, bson.M{"pendingRegistrationId": id})
	if err == nil {
		return &StatusView{
			State:          StateApproved,
			Name:           student.Name,
			RegisterNumber: redactRegisterNumber(student.RegisterNumber),
			Department:     student.Department,
			Year:           student.Year,
		}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}

	return &StatusView{State: StateResolved}, nil
}

// redactRegisterNumber keeps only the last four digits
func redactRegisterNumber(registerNumber string) string {
	if len(registerNumber) <= 4 {
		return registerNumber
	}
	return strings.Repeat("*", len(registerNumber)-4) + registerNumber[len(registerNumber)-4:]
}
