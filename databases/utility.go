package databases

import (
	"go.mongodb.org/mongo-driver/mongo/options"
)

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}

func returnPreImage() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.Before)
}
