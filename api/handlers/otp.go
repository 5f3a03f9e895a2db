package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/models"
	"github.com/placement-cell/placement-portal-api/otp"
)

var validate = validator.New()

// Otp exported for testing purposes
type Otp struct {
	Engine *otp.Engine
}

// RequestCodeRequest is the body for POST /auth/request-code
type RequestCodeRequest struct {
	Identifier string `json:"identifier" validate:"required,email"`
	Purpose    string `json:"purpose" validate:"required"`
}

// VerifyCodeRequest is the body for POST /auth/verify-code
type VerifyCodeRequest struct {
	Identifier string `json:"identifier" validate:"required,email"`
	Purpose    string `json:"purpose" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

// RequestCodeHandler issues a fresh verification code for the identifier and
// purpose. Re-requests replace the outstanding code. The response never reveals
// whether the identifier is already registered.
func (o Otp) RequestCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Identifier = strings.ToLower(strings.TrimSpace(req.Identifier))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidOtpPurpose(req.Purpose) {
		config.ErrorStatus("invalid purpose", http.StatusBadRequest, w, errors.New("unsupported purpose: "+req.Purpose))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := o.Engine.Issue(ctx, req.Identifier, models.OtpPurpose(req.Purpose)); err != nil {
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Debugw("verification code issued", "purpose", req.Purpose)

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"message": "verification code sent"}`))
}

// VerifyCodeHandler redeems a submitted code. A success consumes the challenge;
// repeating the same call afterwards reports no code found.
func (o Otp) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Identifier = strings.ToLower(strings.TrimSpace(req.Identifier))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidOtpPurpose(req.Purpose) {
		config.ErrorStatus("invalid purpose", http.StatusBadRequest, w, errors.New("unsupported purpose: "+req.Purpose))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	err := o.Engine.Verify(ctx, req.Identifier, models.OtpPurpose(req.Purpose), req.Code)
	if err != nil {
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

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "code verified"}`))
}
