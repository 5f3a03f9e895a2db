package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placement-cell/placement-portal-api/api/handlers"
	"github.com/placement-cell/placement-portal-api/databases"
	mocksdb "github.com/placement-cell/placement-portal-api/databases/mocks"
	"github.com/placement-cell/placement-portal-api/models"
)

func newRepresentativeHandler(db databases.DatabaseHelper) handlers.Representative {
	return handlers.Representative{DB: databases.NewRepresentativeDatabase(db)}
}

func TestRepresentative_CreateRepresentativeHandlerBadBody(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/representatives", strings.NewReader("{not-json"))
	if err != nil {
		t.Fatal(err)
	}

	u := newRepresentativeHandler(&mocksdb.DatabaseHelper{})

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRepresentativeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRepresentative_CreateRepresentativeHandlerMissingScope(t *testing.T) {
	body := `{"name": "Dr. Rao", "email": "rao@univ.edu", "password": "hunter2hunter2"}`
	req, err := http.NewRequest("POST", "/api/v1/representatives", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	u := newRepresentativeHandler(&mocksdb.DatabaseHelper{})

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRepresentativeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRepresentative_CreateRepresentativeHandlerSuccess(t *testing.T) {
	body := `{
		"name": "Dr. Rao",
		"email": "rao@univ.edu",
		"password": "hunter2hunter2",
		"department": "CSE",
		"year": "2026"
	}`
	req, err := http.NewRequest("POST", "/api/v1/representatives", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	id := primitive.NewObjectID()
	conn := &mocksdb.CollectionHelper{}
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(id, nil)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "representatives").Return(conn)

	u := newRepresentativeHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRepresentativeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "representative created successfully")
	assert.Contains(t, rr.Body.String(), id.Hex())
}

func TestRepresentative_RepresentativesHandlerSuccess(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/representatives?department=CSE&year=2026", nil)
	if err != nil {
		t.Fatal(err)
	}

	cursor := &mocksdb.CursorHelper{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Representative)
		*arg = []models.Representative{
			{ID: primitive.NewObjectID(), Name: "Dr. Rao", Department: "CSE", Year: "2026", Active: true},
		}
	})
	cursor.On("Close", mock.Anything).Return(nil)

	conn := &mocksdb.CollectionHelper{}
	conn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "representatives").Return(conn)

	u := newRepresentativeHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.RepresentativesHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dr. Rao")
}

func TestRepresentative_DeactivateRepresentativeHandlerBadHex(t *testing.T) {
	req, err := http.NewRequest("DELETE", "/api/v1/representatives/1234", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"representative_id": "1234"})

	u := newRepresentativeHandler(&mocksdb.DatabaseHelper{})

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.DeactivateRepresentativeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRepresentative_DeactivateRepresentativeHandlerSuccess(t *testing.T) {
	id := primitive.NewObjectID()
	req, err := http.NewRequest("DELETE", "/api/v1/representatives/"+id.Hex(), nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"representative_id": id.Hex()})

	conn := &mocksdb.CollectionHelper{}
	conn.On("DeleteOne", mock.Anything, mock.Anything).Return(int64(1), nil)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "representatives").Return(conn)

	u := newRepresentativeHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.DeactivateRepresentativeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message": "representative removed successfully"}`, rr.Body.String())
}
