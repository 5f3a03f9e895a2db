package approval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placement-cell/placement-portal-api/approval"
	"github.com/placement-cell/placement-portal-api/models"
)

// fakeRegistrationStore is an in-memory PendingRegistrationDatabase whose
// Claim is atomic, like the real single-document FindOneAndUpdate.
type fakeRegistrationStore struct {
	mu   sync.Mutex
	recs map[primitive.ObjectID]models.PendingRegistration
}

func newFakeRegistrationStore() *fakeRegistrationStore {
	return &fakeRegistrationStore{recs: make(map[primitive.ObjectID]models.PendingRegistration)}
}

func (f *fakeRegistrationStore) InsertOne(ctx context.Context, registration models.PendingRegistration) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if registration.ID.IsZero() {
		registration.ID = primitive.NewObjectID()
	}
	f.recs[registration.ID] = registration
	return registration.ID, nil
}

func (f *fakeRegistrationStore) FindOneByID(ctx context.Context, id primitive.ObjectID) (*models.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &r, nil
}

func (f *fakeRegistrationStore) FindLive(ctx context.Context, filter bson.M, now time.Time) (*models.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := filter["_id"].(primitive.ObjectID)
	r, ok := f.recs[id]
	if !ok || r.Status != models.RegistrationStatusLive || !r.ExpiresAt.After(now) {
		return nil, mongo.ErrNoDocuments
	}
	return &r, nil
}

func (f *fakeRegistrationStore) Claim(ctx context.Context, id primitive.ObjectID, department, year, action, reviewerID string, now time.Time) (*models.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok || r.Status != models.RegistrationStatusLive || r.Department != department || r.Year != year || !r.ExpiresAt.After(now) {
		return nil, mongo.ErrNoDocuments
	}
	preImage := r
	r.Status = models.RegistrationStatusClaimed
	r.ClaimedAction = action
	r.ClaimedBy = reviewerID
	r.ClaimedAt = &now
	f.recs[id] = r
	return &preImage, nil
}

func (f *fakeRegistrationStore) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, id)
	return nil
}

func (f *fakeRegistrationStore) FindStaleClaims(ctx context.Context, olderThan time.Time) ([]models.PendingRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingRegistration
	for _, r := range f.recs {
		if r.Status == models.RegistrationStatusClaimed && r.ClaimedAt != nil && r.ClaimedAt.Before(olderThan) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.recs {
		if r.Status == models.RegistrationStatusLive && r.ExpiresAt.Before(now) {
			delete(f.recs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

// fakeStudentStore is an in-memory StudentDatabase
type fakeStudentStore struct {
	mu       sync.Mutex
	students []models.Student
}

func (f *fakeStudentStore) InsertOne(ctx context.Context, student models.Student) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if student.ID.IsZero() {
		student.ID = primitive.NewObjectID()
	}
	f.students = append(f.students, student)
	return student.ID, nil
}

func (f *fakeStudentStore) FindOne(ctx context.Context, filter bson.M) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if matchStudent(s, filter) {
			out := s
			return &out, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStudentStore) Find(ctx context.Context, filter bson.M) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Student
	for _, s := range f.students {
		if matchStudent(s, filter) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStudentStore) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{}, nil
}

func (f *fakeStudentStore) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	students, err := f.Find(ctx, filter)
	return int64(len(students)), err
}

func matchStudent(s models.Student, filter bson.M) bool {
	for k, v := range filter {
		switch k {
		case "_id":
			if s.ID != v.(primitive.ObjectID) {
				return false
			}
		case "pendingRegistrationId":
			if s.PendingRegistrationID != v.(primitive.ObjectID) {
				return false
			}
		case "email":
			if s.Email != v.(string) {
				return false
			}
		}
	}
	return true
}

func (f *fakeStudentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.students)
}

// fakeSender swallows outbound email
type fakeSender struct{}

func (f *fakeSender) Send(toEmail, toName, subject, htmlBody, textBody string) error {
	return nil
}

// fakeRepresentativeStore is an in-memory RepresentativeDatabase used by the
// notification fan-out
type fakeRepresentativeStore struct {
	reviewers []models.Representative
}

func (f *fakeRepresentativeStore) InsertOne(ctx context.Context, representative models.Representative) (primitive.ObjectID, error) {
	return primitive.NewObjectID(), nil
}

func (f *fakeRepresentativeStore) FindOne(ctx context.Context, filter bson.M) (*models.Representative, error) {
	return nil, mongo.ErrNoDocuments
}

func (f *fakeRepresentativeStore) Find(ctx context.Context, filter bson.M) ([]models.Representative, error) {
	return f.reviewers, nil
}

func (f *fakeRepresentativeStore) FindEligibleReviewers(ctx context.Context, department, year string) ([]models.Representative, error) {
	return f.reviewers, nil
}

func (f *fakeRepresentativeStore) DeleteOne(ctx context.Context, filter bson.M) error {
	return nil
}

type resolverFixture struct {
	tokens   *approval.TokenService
	prdb     *fakeRegistrationStore
	sdb      *fakeStudentStore
	resolver *approval.Resolver
}

func newResolverFixture() *resolverFixture {
	tokens := approval.NewTokenService([]byte("test-secret"))
	prdb := newFakeRegistrationStore()
	sdb := &fakeStudentStore{}
	notifier := approval.NewNotifier(&fakeSender{}, &fakeRepresentativeStore{}, "http://localhost:8080")
	return &resolverFixture{
		tokens:   tokens,
		prdb:     prdb,
		sdb:      sdb,
		resolver: approval.NewResolver(tokens, prdb, sdb, notifier),
	}
}

func (fx *resolverFixture) submit(t *testing.T) models.PendingRegistration {
	t.Helper()
	now := time.Now()
	registration := models.PendingRegistration{
		Name:           "Asha Verma",
		RegisterNumber: "2026CSE042",
		Email:          "asha@univ.edu",
		PasswordHash:   "$2a$10$hash",
		Department:     "CSE",
		Year:           "2026",
		Status:         models.RegistrationStatusLive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(7 * 24 * time.Hour),
	}
	id, err := fx.prdb.InsertOne(context.Background(), registration)
	assert.NoError(t, err)
	registration.ID = id
	return registration
}

func (fx *resolverFixture) mint(t *testing.T, registration models.PendingRegistration, reviewer models.Representative) string {
	t.Helper()
	token, err := fx.tokens.Mint(registration.ID.Hex(), registration.Department, registration.Year, reviewer)
	assert.NoError(t, err)
	return token
}

func TestResolver_ApproveCreatesStudent(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	reviewer := testReviewer()
	token := fx.mint(t, registration, reviewer)

	outcome, err := fx.resolver.Resolve(context.Background(), token, "approve")
	assert.NoError(t, err)
	assert.Equal(t, models.ActionApprove, outcome.Action)
	assert.Equal(t, reviewer.Name, outcome.ResolvedBy)
	assert.False(t, outcome.StudentID.IsZero())

	student, err := fx.sdb.FindOne(context.Background(), bson.M{"pendingRegistrationId": registration.ID})
	assert.NoError(t, err)
	assert.Equal(t, registration.Email, student.Email)
	assert.Equal(t, registration.RegisterNumber, student.RegisterNumber)
	assert.Equal(t, registration.PasswordHash, student.PasswordHash)
	assert.Equal(t, models.StudentStatusApproved, student.Status)
	assert.Equal(t, reviewer.Name, student.ApprovedBy)

	// The source registration is gone.
	assert.Equal(t, 0, fx.prdb.count())
}

func TestResolver_RejectCreatesNoStudent(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())

	outcome, err := fx.resolver.Resolve(context.Background(), token, "reject")
	assert.NoError(t, err)
	assert.Equal(t, models.ActionReject, outcome.Action)
	assert.True(t, outcome.StudentID.IsZero())

	assert.Equal(t, 0, fx.sdb.count())
	assert.Equal(t, 0, fx.prdb.count())
}

func TestResolver_SecondResolveReportsAlreadyResolved(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	first := fx.mint(t, registration, testReviewer())
	second := fx.mint(t, registration, testReviewer())

	_, err := fx.resolver.Resolve(context.Background(), first, "approve")
	assert.NoError(t, err)

	// A different reviewer's link, and the winner's own link, both report the
	// same terminal answer.
	_, err = fx.resolver.Resolve(context.Background(), second, "reject")
	assert.ErrorIs(t, err, approval.ErrAlreadyResolved)

	_, err = fx.resolver.Resolve(context.Background(), first, "approve")
	assert.ErrorIs(t, err, approval.ErrAlreadyResolved)

	assert.Equal(t, 1, fx.sdb.count())
}

func TestResolver_ConcurrentResolversExactlyOneWinner(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)

	const workers = 12
	tokens := make([]string, workers)
	for i := range tokens {
		tokens[i] = fx.mint(t, registration, testReviewer())
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := "approve"
			if i%2 == 1 {
				action = "reject"
			}
			_, err := fx.resolver.Resolve(context.Background(), tokens[i], action)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, approval.ErrAlreadyResolved)
		}
	}
	assert.Equal(t, 1, winners)
	assert.LessOrEqual(t, fx.sdb.count(), 1)
}

func TestResolver_ScopeMismatch(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)

	// Token scoped to a different department than the live record.
	token, err := fx.tokens.Mint(registration.ID.Hex(), "EEE", registration.Year, testReviewer())
	assert.NoError(t, err)

	_, err = fx.resolver.Resolve(context.Background(), token, "approve")
	assert.ErrorIs(t, err, approval.ErrScopeMismatch)

	// The registration is untouched and still resolvable with a correct token.
	good := fx.mint(t, registration, testReviewer())
	_, err = fx.resolver.Resolve(context.Background(), good, "approve")
	assert.NoError(t, err)
}

func TestResolver_InvalidAction(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())

	_, err := fx.resolver.Resolve(context.Background(), token, "maybe")
	assert.ErrorIs(t, err, approval.ErrInvalidAction)

	_, err = fx.resolver.Resolve(context.Background(), token, "")
	assert.ErrorIs(t, err, approval.ErrInvalidAction)
}

func TestResolver_ExpiredToken(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())

	fx.tokens.Now = func() time.Time { return time.Now().Add(approval.TokenTTL + time.Hour) }

	_, err := fx.resolver.Resolve(context.Background(), token, "approve")
	assert.ErrorIs(t, err, approval.ErrLinkExpired)
}

func TestResolver_ExpiredRegistration(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())

	fx.resolver.Now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err := fx.resolver.Resolve(context.Background(), token, "approve")
	assert.ErrorIs(t, err, approval.ErrAlreadyResolved)
}

func TestResolver_PromoteIsIdempotent(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())

	// A previous crashed attempt already created the student.
	existingID := primitive.NewObjectID()
	_, err := fx.sdb.InsertOne(context.Background(), models.Student{
		ID:                    existingID,
		PendingRegistrationID: registration.ID,
		Email:                 registration.Email,
		Status:                models.StudentStatusApproved,
	})
	assert.NoError(t, err)

	outcome, err := fx.resolver.Resolve(context.Background(), token, "approve")
	assert.NoError(t, err)
	assert.Equal(t, existingID, outcome.StudentID)
	assert.Equal(t, 1, fx.sdb.count())
}

func TestResolver_StatusLifecycle(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())
	ctx := context.Background()

	view, err := fx.resolver.Status(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, approval.StatePending, view.State)
	assert.Equal(t, registration.Name, view.Name)
	// All but the last four digits are masked.
	assert.Equal(t, "******E042", view.RegisterNumber)

	_, err = fx.resolver.Resolve(ctx, token, "approve")
	assert.NoError(t, err)

	view, err = fx.resolver.Status(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, approval.StateApproved, view.State)
}

func TestResolver_StatusAfterReject(t *testing.T) {
	fx := newResolverFixture()
	registration := fx.submit(t)
	token := fx.mint(t, registration, testReviewer())
	ctx := context.Background()

	_, err := fx.resolver.Resolve(ctx, token, "reject")
	assert.NoError(t, err)

	view, err := fx.resolver.Status(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, approval.StateResolved, view.State)
	assert.Empty(t, view.Name)
	assert.Empty(t, view.RegisterNumber)
}
