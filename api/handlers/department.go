package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/placement-cell/placement-portal-api/api"
	"github.com/placement-cell/placement-portal-api/config"
	"github.com/placement-cell/placement-portal-api/databases"
	"github.com/placement-cell/placement-portal-api/models"
)

// departmentCacheTTL is how long the department list is served from memory.
// Departments change a few times a year at most.
const departmentCacheTTL = 10 * time.Minute

// Department exported for testing purposes
type Department struct {
	DB databases.DepartmentDatabase

	mu       sync.Mutex
	cached   []models.Department
	cachedAt time.Time
}

// DepartmentsHandler returns all departments with their admissible years,
// served from a short-lived in-memory cache.
func (d *Department) DepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	if d.cached != nil && time.Since(d.cachedAt) < departmentCacheTTL {
		departments := d.cached
		d.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(departments)
		return
	}
	d.mu.Unlock()

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := d.DB.Find(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get departments", http.StatusNotFound, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Department{}
	}

	d.mu.Lock()
	d.cached = dbResp
	d.cachedAt = time.Now()
	d.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}
