package databases

// go generate: mockery --name RepresentativeDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/placement-cell/placement-portal-api/models"
)

const representativeName = "representatives"

// RepresentativeDatabase contains the methods to use with the representative database
type RepresentativeDatabase interface {
	InsertOne(ctx context.Context, representative models.Representative) (primitive.ObjectID, error)
	FindOne(ctx context.Context, filter bson.M) (*models.Representative, error)
	Find(ctx context.Context, filter bson.M) ([]models.Representative, error)
	// FindEligibleReviewers returns every active representative scoped to the
	// department+year pair that has a contact address.
	FindEligibleReviewers(ctx context.Context, department, year string) ([]models.Representative, error)
	DeleteOne(ctx context.Context, filter bson.M) error
}

type representativeDatabase struct {
	db DatabaseHelper
}

// NewRepresentativeDatabase initializes a new instance of representative database with the provided db connection
func NewRepresentativeDatabase(db DatabaseHelper) RepresentativeDatabase {
	return &representativeDatabase{
		db: db,
	}
}

func (c *representativeDatabase) InsertOne(ctx context.Context, representative models.Representative) (primitive.ObjectID, error) {
	id, err := c.db.Collection(representativeName).InsertOne(ctx, representative)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid, nil
	}
	return representative.ID, nil
}

func (c *representativeDatabase) FindOne(ctx context.Context, filter bson.M) (*models.Representative, error) {
	representative := &models.Representative{}
	err := c.db.Collection(representativeName).FindOne(ctx, filter).Decode(representative)
	if err != nil {
		return nil, err
	}
	return representative, nil
}

func (c *representativeDatabase) Find(ctx context.Context, filter bson.M) ([]models.Representative, error) {
	cursor, err := c.db.Collection(representativeName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var representatives []models.Representative
	if err := cursor.All(ctx, &representatives); err != nil {
		return nil, err
	}
	return representatives, nil
}

func (c *representativeDatabase) FindEligibleReviewers(ctx context.Context, department, year string) ([]models.Representative, error) {
	filter := bson.M{
		"department": department,
		"year":       year,
		"active":     true,
		"email":      bson.M{"$ne": ""},
	}
	return c.Find(ctx, filter)
}

func (c *representativeDatabase) DeleteOne(ctx context.Context, filter bson.M) error {
	_, err := c.db.Collection(representativeName).DeleteOne(ctx, filter)
	return err
}
