package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Department holds the structure for the departments collection in mongo
type Department struct {
	ID    primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Code  string             `json:"code" bson:"code"`
	Years []string           `json:"years" bson:"years"`
}
