package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placement-cell/placement-portal-api/api/handlers"
	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/databases"
	mocksdb "github.com/placement-cell/placement-portal-api/databases/mocks"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/otp"
)

const registrationBody = `{
	"name": "Asha Verma",
	"registerNumber": "2026CSE042",
	"email": "asha@univ.edu",
	"password": "hunter2hunter2",
	"department": "CSE",
	"year": "2026",
	"code": "123456"
}`

func newRegistrationHandler(db databases.DatabaseHelper) handlers.Registration {
	mail := mailer.NewSendGrid("", "no-reply@test", "Test")
	return handlers.Registration{
		Engine:  otp.NewEngine(databases.NewOtpChallengeDatabase(db), mail),
		Tokens:  approval.NewTokenService([]byte("test-secret")),
		PRDB:    databases.NewPendingRegistrationDatabase(db),
		SDB:     databases.NewStudentDatabase(db),
		RDB:     databases.NewRepresentativeDatabase(db),
		Mail:    mail,
		BaseURL: "http://localhost:8080",
	}
}

func TestRegistration_CreateRegistrationHandlerBadBody(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader("{not-json"))
	if err != nil {
		t.Fatal(err)
	}

	u := newRegistrationHandler(&mocksdb.DatabaseHelper{})

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistration_CreateRegistrationHandlerMissingFields(t *testing.T) {
	body := `{"name": "Asha Verma", "email": "asha@univ.edu"}`
	req, err := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	u := newRegistrationHandler(&mocksdb.DatabaseHelper{})

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistration_CreateRegistrationHandlerNoCodeRequested(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(registrationBody))
	if err != nil {
		t.Fatal(err)
	}

	noDocs := &mocksdb.SingleResultHelper{}
	noDocs.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)

	otpConn := &mocksdb.CollectionHelper{}
	otpConn.On("FindOneAndDelete", mock.Anything, mock.Anything).Return(noDocs)
	otpConn.On("FindOne", mock.Anything, mock.Anything).Return(noDocs)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "otpChallenges").Return(otpConn)

	u := newRegistrationHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegistration_CreateRegistrationHandlerDuplicateStudent(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(registrationBody))
	if err != nil {
		t.Fatal(err)
	}

	claimResult := &mocksdb.SingleResultHelper{}
	claimResult.On("Decode", mock.Anything).Return(nil)

	otpConn := &mocksdb.CollectionHelper{}
	otpConn.On("FindOneAndDelete", mock.Anything, mock.Anything).Return(claimResult)

	studentConn := &mocksdb.CollectionHelper{}
	studentConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "otpChallenges").Return(otpConn)
	db.On("Collection", "students").Return(studentConn)

	u := newRegistrationHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRegistration_CreateRegistrationHandlerSuccess(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(registrationBody))
	if err != nil {
		t.Fatal(err)
	}

	claimResult := &mocksdb.SingleResultHelper{}
	claimResult.On("Decode", mock.Anything).Return(nil)

	otpConn := &mocksdb.CollectionHelper{}
	otpConn.On("FindOneAndDelete", mock.Anything, mock.Anything).Return(claimResult)

	studentConn := &mocksdb.CollectionHelper{}
	studentConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	noDocs := &mocksdb.SingleResultHelper{}
	noDocs.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)

	registrationConn := &mocksdb.CollectionHelper{}
	registrationConn.On("FindOne", mock.Anything, mock.Anything).Return(noDocs)
	registrationConn.On("InsertOne", mock.Anything, mock.Anything).Return(primitive.NewObjectID(), nil)

	// The review fan-out runs in the background after the response is written.
	emptyCursor := &mocksdb.CursorHelper{}
	emptyCursor.On("All", mock.Anything, mock.Anything).Return(nil)
	emptyCursor.On("Close", mock.Anything).Return(nil)

	representativeConn := &mocksdb.CollectionHelper{}
	representativeConn.On("Find", mock.Anything, mock.Anything).Return(emptyCursor, nil)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "otpChallenges").Return(otpConn)
	db.On("Collection", "students").Return(studentConn)
	db.On("Collection", "pendingRegistrations").Return(registrationConn)
	db.On("Collection", "representatives").Return(representativeConn)

	u := newRegistrationHandler(db)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.CreateRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "registration submitted for approval")
}
