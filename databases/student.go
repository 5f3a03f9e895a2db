package databases

// go generate: mockery --name StudentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/placement-cell/placement-portal-api/models"
)

const studentName = "students"

// StudentDatabase contains the methods to use with the student database
type StudentDatabase interface {
	InsertOne(ctx context.Context, student models.Student) (primitive.ObjectID, error)
	FindOne(ctx context.Context, filter bson.M) (*models.Student, error)
	Find(ctx context.Context, filter bson.M) ([]models.Student, error)
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

type studentDatabase struct {
	db DatabaseHelper
}

// NewStudentDatabase initializes a new instance of student database with the provided db connection
func NewStudentDatabase(db DatabaseHelper) StudentDatabase {
	return &studentDatabase{
		db: db,
	}
}

func (c *studentDatabase) InsertOne(ctx context.Context, student models.Student) (primitive.ObjectID, error) {
	id, err := c.db.Collection(studentName).InsertOne(ctx, student)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid, nil
	}
	return student.ID, nil
}

func (c *studentDatabase) FindOne(ctx context.Context, filter bson.M) (*models.Student, error) {
	student := &models.Student{}
	err := c.db.Collection(studentName).FindOne(ctx, filter).Decode(student)
	if err != nil {
		return nil, err
	}
	return student, nil
}

func (c *studentDatabase) Find(ctx context.Context, filter bson.M) ([]models.Student, error) {
	cursor, err := c.db.Collection(studentName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var students []models.Student
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *studentDatabase) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	return c.db.Collection(studentName).UpdateOne(ctx, filter, update)
}

func (c *studentDatabase) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return c.db.Collection(studentName).CountDocuments(ctx, filter)
}
