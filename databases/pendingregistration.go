package databases

// go generate: mockery --name PendingRegistrationDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placement-cell/placement-portal-api/models"
)

const pendingRegistrationName = "pendingRegistrations"

// PendingRegistrationDatabase contains the methods to use with the
// pendingRegistration database. Claim is the only way a live record leaves the
// live state through the API: it is a single conditional update, so exactly one
// of any number of concurrent reviewers can win it.
type PendingRegistrationDatabase interface {
	InsertOne(ctx context.Context, registration models.PendingRegistration) (primitive.ObjectID, error)
	FindOneByID(ctx context.Context, id primitive.ObjectID) (*models.PendingRegistration, error)
	// FindLive returns the live, unexpired record matching the filter.
	FindLive(ctx context.Context, filter bson.M, now time.Time) (*models.PendingRegistration, error)
	// Claim atomically transitions the matching live record to claimed and
	// returns the record as it was before the transition. Returns
	// mongo.ErrNoDocuments when no live record matches the full scope.
	Claim(ctx context.Context, id primitive.ObjectID, department, year, action, reviewerID string, now time.Time) (*models.PendingRegistration, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	// FindStaleClaims returns claimed records whose follow-up writes never
	// landed, for the reconciliation sweep.
	FindStaleClaims(ctx context.Context, olderThan time.Time) ([]models.PendingRegistration, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingRegistrationDatabase struct {
	db DatabaseHelper
}

// NewPendingRegistrationDatabase initializes a new instance of pendingRegistration database with the provided db connection
func NewPendingRegistrationDatabase(db DatabaseHelper) PendingRegistrationDatabase {
	return &pendingRegistrationDatabase{
		db: db,
	}
}

func (c *pendingRegistrationDatabase) InsertOne(ctx context.Context, registration models.PendingRegistration) (primitive.ObjectID, error) {
	id, err := c.db.Collection(pendingRegistrationName).InsertOne(ctx, registration)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid, nil
	}
	return registration.ID, nil
}

func (c *pendingRegistrationDatabase) FindOneByID(ctx context.Context, id primitive.ObjectID) (*models.PendingRegistration, error) {
	registration := &models.PendingRegistration{}
	err := c.db.Collection(pendingRegistrationName).FindOne(ctx, bson.M{"_id": id}).Decode(registration)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (c *pendingRegistrationDatabase) FindLive(ctx context.Context, filter bson.M, now time.Time) (*models.PendingRegistration, error) {
	live := bson.M{
		"status":    models.RegistrationStatusLive,
		"expiresAt": bson.M{"$gt": now},
	}
	for k, v := range filter {
		live[k] = v
	}
	registration := &models.PendingRegistration{}
	err := c.db.Collection(pendingRegistrationName).FindOne(ctx, live).Decode(registration)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (c *pendingRegistrationDatabase) Claim(ctx context.Context, id primitive.ObjectID, department, year, action, reviewerID string, now time.Time) (*models.PendingRegistration, error) {
	filter := bson.M{
		"_id":        id,
		"department": department,
		"year":       year,
		"status":     models.RegistrationStatusLive,
		"expiresAt":  bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"status":        models.RegistrationStatusClaimed,
		"claimedAction": action,
		"claimedBy":     reviewerID,
		"claimedAt":     now,
	}}

	registration := &models.PendingRegistration{}
	err := c.db.Collection(pendingRegistrationName).FindOneAndUpdate(ctx, filter, update, returnPreImage()).Decode(registration)
	if err != nil {
		return nil, err
	}
	return registration, nil
}

func (c *pendingRegistrationDatabase) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := c.db.Collection(pendingRegistrationName).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (c *pendingRegistrationDatabase) FindStaleClaims(ctx context.Context, olderThan time.Time) ([]models.PendingRegistration, error) {
	filter := bson.M{
		"status":    models.RegistrationStatusClaimed,
		"claimedAt": bson.M{"$lt": olderThan},
	}
	cursor, err := c.db.Collection(pendingRegistrationName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var registrations []models.PendingRegistration
	if err := cursor.All(ctx, &registrations); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (c *pendingRegistrationDatabase) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":    models.RegistrationStatusLive,
		"expiresAt": bson.M{"$lt": now},
	}
	return c.db.Collection(pendingRegistrationName).DeleteMany(ctx, filter)
}
