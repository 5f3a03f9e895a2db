package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/models"
)

// Representative exported for testing purposes
type Representative struct {
	DB databases.RepresentativeDatabase
}

// CreateRepresentativeRequest is the body for POST /representatives
type CreateRepresentativeRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Department string `json:"department" validate:"required"`
	Year       string `json:"year" validate:"required"`
	Role       string `json:"role"`
}

// CreateRepresentativeHandler creates a new representative. Newly created
// representatives immediately start receiving approval links for their scope.
func (rep Representative) CreateRepresentativeHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRepresentativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleRepresentative
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	id, err := rep.DB.InsertOne(ctx, models.Representative{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Department:   req.Department,
		Year:         req.Year,
		Role:         req.Role,
		Active:       true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		config.ErrorStatus("failed to create representative", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "representative created successfully",
		"id":      id.Hex(),
	})
}

// RepresentativesHandler returns representatives, optionally filtered by
// department and year
func (rep Representative) RepresentativesHandler(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if department := r.URL.Query().Get("department"); department != "" {
		filter["department"] = department
	}
	if year := r.URL.Query().Get("year"); year != "" {
		filter["year"] = year
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := rep.DB.Find(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to get representatives", http.StatusNotFound, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Representative{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

// DeactivateRepresentativeHandler marks a representative inactive so they stop
// receiving approval links. Their outstanding tokens stop working at the
// resolver because claims record the reviewer, not here.
func (rep Representative) DeactivateRepresentativeHandler(w http.ResponseWriter, r *http.Request) {
	repID := mux.Vars(r)["representative_id"]

	rID, err := primitive.ObjectIDFromHex(repID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := rep.DB.DeleteOne(ctx, bson.M{"_id": rID}); err != nil {
		config.ErrorStatus("failed to deactivate representative", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "representative removed successfully"}`))
}
