package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/models"
	"github.com/placement-cell/placement-portal-api/otp"
)

// RegistrationTTL is how long a submitted registration waits for a reviewer
// before it self-expires.
const RegistrationTTL = 7 * 24 * time.Hour

// Registration exported for testing purposes
type Registration struct {
	Engine  *otp.Engine
	Tokens  *approval.TokenService
	PRDB    databases.PendingRegistrationDatabase
	SDB     databases.StudentDatabase
	RDB     databases.RepresentativeDatabase
	Mail    mailer.Sender
	Hub     *Hub
	BaseURL string

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// CreateRegistrationRequest is the body for POST /registrations
type CreateRegistrationRequest struct {
	Name           string `json:"name" validate:"required"`
	RegisterNumber string `json:"registerNumber" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Department     string `json:"department" validate:"required"`
	Year           string `json:"year" validate:"required"`
	PhotoURL       string `json:"photoUrl"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
}

// CreateRegistrationHandler accepts a registration submission. The submitted
// code is redeemed as part of the request, so a registration can only ever be
// created by someone who controls the email address. On success every eligible
// representative for the department+year is emailed an approval link.
func (re Registration) CreateRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.RegisterNumber = strings.TrimSpace(req.RegisterNumber)

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// Redeem the ownership proof first. A consumed code cannot back a second
	// submission.
	if err := re.Engine.Verify(ctx, req.Email, models.PurposeRegister, req.Code); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, otp.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, otp.ErrExpired):
			status = http.StatusGone
		case errors.Is(err, otp.ErrMismatch):
			status = http.StatusUnauthorized
		}
		config.ErrorStatus("failed to verify code", status, w, err)
		return
	}

	if err := re.checkUniqueness(ctx, req.Email, req.RegisterNumber); err != nil {
		config.ErrorStatus("registration already exists", http.StatusConflict, w, err)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := re.now()
	registration := models.PendingRegistration{
		Name:           req.Name,
		RegisterNumber: req.RegisterNumber,
		Email:          req.Email,
		PasswordHash:   string(passwordHash),
		Department:     req.Department,
		Year:           req.Year,
		PhotoURL:       req.PhotoURL,
		Status:         models.RegistrationStatusLive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(RegistrationTTL),
	}

	id, err := re.PRDB.InsertOne(ctx, registration)
	if err != nil {
		config.ErrorStatus("failed to create registration", http.StatusInternalServerError, w, err)
		return
	}
	registration.ID = id

	// Fan out approval links in the background; the submission has already
	// succeeded.
	go func(registration models.PendingRegistration) {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic while requesting reviews", "registrationId", registration.ID.Hex(), "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		notified := approval.RequestReviews(ctx, re.Tokens, re.RDB, re.Mail, re.BaseURL, &registration)
		zap.S().Infow("requested registration reviews",
			"registrationId", registration.ID.Hex(), "reviewersNotified", notified)
	}(registration)

	re.Hub.BroadcastEvent("registration_submitted", map[string]interface{}{
		"registrationId": id.Hex(),
		"department":     registration.Department,
		"year":           registration.Year,
	})

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "registration submitted for approval",
		"id":      id.Hex(),
	})
}

// checkUniqueness rejects a submission whose email or register number is
// already attached to an approved student or a live registration.
func (re Registration) checkUniqueness(ctx context.Context, email, registerNumber string) error {
	dupes := bson.M{"$or": []bson.M{
		{"email": email},
		{"registerNumber": registerNumber},
	}}

	count, err := re.SDB.CountDocuments(ctx, dupes)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("a student with this email or register number already exists")
	}

	_, err = re.PRDB.FindLive(ctx, dupes, re.now())
	if err == nil {
		return errors.New("a registration with this email or register number is already awaiting approval")
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	return nil
}

func (re Registration) now() time.Time {
	if re.Now != nil {
		return re.Now()
	}
	return time.Now()
}
