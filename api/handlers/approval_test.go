package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placement-cell/placement-portal-api/api/handlers"
	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/databases"
	mocksdb "github.com/placement-cell/placement-portal-api/databases/mocks"
	"github.com/placement-cell/placement-portal-api/mailer"
	"github.com/placement-cell/placement-portal-api/models"
)

func newApprovalHandler(db databases.DatabaseHelper, tokens *approval.TokenService) handlers.Approval {
	rdb := databases.NewRepresentativeDatabase(db)
	notifier := &approval.Notifier{
		Mail:    mailer.NewSendGrid("", "no-reply@test", "Test"),
		RDB:     rdb,
		BaseURL: "http://localhost:8080",
	}
	resolver := approval.NewResolver(tokens, databases.NewPendingRegistrationDatabase(db), databases.NewStudentDatabase(db), notifier)
	return handlers.Approval{Resolver: resolver}
}

func mintTestToken(t *testing.T, tokens *approval.TokenService, registrationID primitive.ObjectID) string {
	t.Helper()
	token, err := tokens.Mint(registrationID.Hex(), "CSE", "2026", models.Representative{
		ID:    primitive.NewObjectID(),
		Name:  "Dr. Rao",
		Email: "rao@univ.edu",
	})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestApproval_ResolveRegistrationHandlerInvalidAction(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/registrations/resolve?token=abc&action=escalate", nil)
	if err != nil {
		t.Fatal(err)
	}

	u := newApprovalHandler(&mocksdb.DatabaseHelper{}, approval.NewTokenService([]byte("test-secret")))

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ResolveRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproval_ResolveRegistrationHandlerInvalidToken(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/registrations/resolve?token=not-a-token&action=approve", nil)
	if err != nil {
		t.Fatal(err)
	}

	u := newApprovalHandler(&mocksdb.DatabaseHelper{}, approval.NewTokenService([]byte("test-secret")))

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ResolveRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproval_ResolveRegistrationHandlerAlreadyResolved(t *testing.T) {
	tokens := approval.NewTokenService([]byte("test-secret"))
	registrationID := primitive.NewObjectID()
	token := mintTestToken(t, tokens, registrationID)

	req, err := http.NewRequest("GET", "/api/v1/registrations/resolve?token="+token+"&action=reject", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Claim misses and the follow-up read finds nothing: someone already won.
	noDocs := &mocksdb.SingleResultHelper{}
	noDocs.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)

	registrationConn := &mocksdb.CollectionHelper{}
	registrationConn.On("FindOneAndUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(noDocs)
	registrationConn.On("FindOne", mock.Anything, mock.Anything).Return(noDocs)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "pendingRegistrations").Return(registrationConn)

	u := newApprovalHandler(db, tokens)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ResolveRegistrationHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestApproval_RegistrationStatusHandlerInvalidToken(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/registrations/status?token=garbage", nil)
	if err != nil {
		t.Fatal(err)
	}

	u := newApprovalHandler(&mocksdb.DatabaseHelper{}, approval.NewTokenService([]byte("test-secret")))

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.RegistrationStatusHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproval_RegistrationStatusHandlerPending(t *testing.T) {
	tokens := approval.NewTokenService([]byte("test-secret"))
	registrationID := primitive.NewObjectID()
	token := mintTestToken(t, tokens, registrationID)

	req, err := http.NewRequest("GET", "/api/v1/registrations/status?token="+token, nil)
	if err != nil {
		t.Fatal(err)
	}

	liveResult := &mocksdb.SingleResultHelper{}
	liveResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.PendingRegistration)
		arg.ID = registrationID
		arg.Name = "Asha Verma"
		arg.RegisterNumber = "2026CSE042"
		arg.Department = "CSE"
		arg.Year = "2026"
		arg.Status = models.RegistrationStatusLive
		arg.ExpiresAt = time.Now().Add(time.Hour)
	})

	registrationConn := &mocksdb.CollectionHelper{}
	registrationConn.On("FindOne", mock.Anything, mock.Anything).Return(liveResult)

	db := &mocksdb.DatabaseHelper{}
	db.On("Collection", "pendingRegistrations").Return(registrationConn)

	u := newApprovalHandler(db, tokens)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.RegistrationStatusHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"state":"pending"`)
	assert.Contains(t, rr.Body.String(), "******E042")
	assert.NotContains(t, rr.Body.String(), "2026CSE042")
}
