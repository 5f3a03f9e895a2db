package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/models"
	"github.com/placement-cell/placement-portal-api/otp"
)

// Student exported for testing purposes
type Student struct {
	DB     databases.StudentDatabase
	Engine *otp.Engine
}

// PaginatedDataResponse wraps list responses with paging metadata
type PaginatedDataResponse struct {
	Page       int         `json:"page"`
	TotalCount int64       `json:"totalCount"`
	Data       interface{} `json:"data"`
}

// StudentByIDHandler returns a student by ID
func (s Student) StudentByIDHandler(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["student_id"]

	zap.S().Debugf("student_id: %v", studentID)

	sID, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := s.DB.FindOne(ctx, bson.M{"_id": sID})
	if err != nil {
		config.ErrorStatus("failed to get student by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// StudentsHandler returns students filtered by department, year and status
func (s Student) StudentsHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || Limit <= 0 {
		Limit = 10
	}
	Page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || Page < 1 {
		Page = 1
	}

	filter := bson.M{}
	if department := r.URL.Query().Get("department"); department != "" {
		filter["department"] = department
	}
	if year := r.URL.Query().Get("year"); year != "" {
		filter["year"] = year
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := s.DB.Find(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to get students", http.StatusNotFound, w, err)
		return
	}

	total := int64(len(dbResp))

	// Page in memory; student lists stay small per department+year.
	start := (Page - 1) * Limit
	if start > len(dbResp) {
		start = len(dbResp)
	}
	end := start + Limit
	if end > len(dbResp) {
		end = len(dbResp)
	}
	dbResp = dbResp[start:end]

	if len(dbResp) == 0 {
		dbResp = []models.Student{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(PaginatedDataResponse{
		Page:       Page,
		TotalCount: total,
		Data:       dbResp,
	})
}

// UpdateStudentByIDHandler updates a student's profile fields by ID. Identity
// fields and the password hash can only change through their dedicated flows.
func (s Student) UpdateStudentByIDHandler(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["student_id"]

	sID, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var updatedFields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updatedFields); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	allowed := map[string]bool{"name": true, "photoUrl": true, "resumeUrl": true, "phone": true, "status": true}
	update := bson.M{"$set": bson.M{"updatedAt": time.Now()}}
	for key, value := range updatedFields {
		if !allowed[key] {
			config.ErrorStatus("field cannot be updated", http.StatusBadRequest, w, errors.New("field not updatable: "+key))
			return
		}
		update["$set"].(bson.M)[key] = value
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = s.DB.UpdateOne(ctx, bson.M{"_id": sID}, update)
	if err != nil {
		config.ErrorStatus("failed to update student by ID", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "student updated successfully"}`))
}

// ChangeEmailRequest is the body for POST /students/{student_id}/change-email.
// The code must have been issued to the new address.
type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// ChangeEmailHandler swaps a student's email after the new address has been
// proven with a code issued for the email change purpose.
func (s Student) ChangeEmailHandler(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["student_id"]

	sID, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.NewEmail = strings.ToLower(strings.TrimSpace(req.NewEmail))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := s.Engine.Verify(ctx, req.NewEmail, models.PurposeEmailChange, req.Code); err != nil {
		config.ErrorStatus("failed to verify code", verifyErrorStatus(err), w, err)
		return
	}

	count, err := s.DB.CountDocuments(ctx, bson.M{"email": req.NewEmail})
	if err != nil {
		config.ErrorStatus("failed to check email uniqueness", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("email already in use", http.StatusConflict, w, errors.New("another student already uses this email"))
		return
	}

	update := bson.M{"$set": bson.M{"email": req.NewEmail, "updatedAt": time.Now()}}
	if _, err := s.DB.UpdateOne(ctx, bson.M{"_id": sID}, update); err != nil {
		config.ErrorStatus("failed to update email", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "email updated successfully"}`))
}

// ResetPasswordRequest is the body for POST /auth/reset-password
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ResetPasswordHandler sets a new password for a student who proved ownership
// of their email with a password reset code.
func (s Student) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := s.Engine.Verify(ctx, req.Email, models.PurposeForgotPassword, req.Code); err != nil {
		config.ErrorStatus("failed to verify code", verifyErrorStatus(err), w, err)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	update := bson.M{"$set": bson.M{"passwordHash": string(passwordHash), "updatedAt": time.Now()}}
	result, err := s.DB.UpdateOne(ctx, bson.M{"email": req.Email}, update)
	if err != nil {
		config.ErrorStatus("failed to update password", http.StatusInternalServerError, w, err)
		return
	}
	if result.MatchedCount == 0 {
		config.ErrorStatus("no student with this email", http.StatusNotFound, w, errors.New("email not registered"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "password updated successfully"}`))
}

// ChangePhoneRequest is the body for POST /students/{student_id}/change-phone.
// The code is delivered to the student's verified email.
type ChangePhoneRequest struct {
	Email    string `json:"email" validate:"required,email"`
	NewPhone string `json:"newPhone" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// ChangePhoneHandler updates a student's phone number after a code issued for
// the phone change purpose has been redeemed.
func (s Student) ChangePhoneHandler(w http.ResponseWriter, r *http.Request) {
	studentID := mux.Vars(r)["student_id"]

	sID, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req ChangePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := s.Engine.Verify(ctx, req.Email, models.PurposePhoneChange, req.Code); err != nil {
		config.ErrorStatus("failed to verify code", verifyErrorStatus(err), w, err)
		return
	}

	update := bson.M{"$set": bson.M{"phone": req.NewPhone, "updatedAt": time.Now()}}
	if _, err := s.DB.UpdateOne(ctx, bson.M{"_id": sID, "email": req.Email}, update); err != nil {
		config.ErrorStatus("failed to update phone", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "phone updated successfully"}`))
}

func verifyErrorStatus(err error) int {
	switch {
	case errors.Is(err, otp.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, otp.ErrExpired):
		return http.StatusGone
	case errors.Is(err, otp.ErrMismatch):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
