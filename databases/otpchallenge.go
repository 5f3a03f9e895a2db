package databases

// go generate: mockery --name OtpChallengeDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/placement-cell/placement-portal-api/models"
)

const otpChallengeName = "otpChallenges"

// OtpChallengeDatabase contains the methods to use with the otpChallenge database.
// Replace and Claim are single atomic operations so two concurrent verifications
// of the same challenge can never both succeed.
type OtpChallengeDatabase interface {
	// Replace inserts the challenge, removing any prior challenge for the same
	// (identifier, purpose) pair in the same operation.
	Replace(ctx context.Context, challenge models.OtpChallenge) error
	// Claim deletes and returns the challenge matching identifier, purpose and
	// code, provided it has not expired. Returns mongo.ErrNoDocuments when no
	// such challenge exists.
	Claim(ctx context.Context, identifier string, purpose models.OtpPurpose, code string, now time.Time) (*models.OtpChallenge, error)
	FindOne(ctx context.Context, identifier string, purpose models.OtpPurpose) (*models.OtpChallenge, error)
	IncrementAttempts(ctx context.Context, identifier string, purpose models.OtpPurpose) error
	DeleteOne(ctx context.Context, identifier string, purpose models.OtpPurpose) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type otpChallengeDatabase struct {
	db DatabaseHelper
}

// NewOtpChallengeDatabase initializes a new instance of otpChallenge database with the provided db connection
func NewOtpChallengeDatabase(db DatabaseHelper) OtpChallengeDatabase {
	return &otpChallengeDatabase{
		db: db,
	}
}

func pairFilter(identifier string, purpose models.OtpPurpose) bson.M {
	return bson.M{"identifier": identifier, "purpose": purpose}
}

func (c *otpChallengeDatabase) Replace(ctx context.Context, challenge models.OtpChallenge) error {
	opts := replaceUpsert()
	_, err := c.db.Collection(otpChallengeName).ReplaceOne(ctx, pairFilter(challenge.Identifier, challenge.Purpose), challenge, opts)
	return err
}

func (c *otpChallengeDatabase) Claim(ctx context.Context, identifier string, purpose models.OtpPurpose, code string, now time.Time) (*models.OtpChallenge, error) {
	challenge := &models.OtpChallenge{}
	filter := bson.M{
		"identifier": identifier,
		"purpose":    purpose,
		"code":       code,
		"expiresAt":  bson.M{"$gt": now},
	}
	err := c.db.Collection(otpChallengeName).FindOneAndDelete(ctx, filter).Decode(challenge)
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *otpChallengeDatabase) FindOne(ctx context.Context, identifier string, purpose models.OtpPurpose) (*models.OtpChallenge, error) {
	challenge := &models.OtpChallenge{}
	err := c.db.Collection(otpChallengeName).FindOne(ctx, pairFilter(identifier, purpose)).Decode(challenge)
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *otpChallengeDatabase) IncrementAttempts(ctx context.Context, identifier string, purpose models.OtpPurpose) error {
	_, err := c.db.Collection(otpChallengeName).UpdateOne(ctx, pairFilter(identifier, purpose), bson.M{"$inc": bson.M{"attempts": 1}})
	return err
}

func (c *otpChallengeDatabase) DeleteOne(ctx context.Context, identifier string, purpose models.OtpPurpose) error {
	_, err := c.db.Collection(otpChallengeName).DeleteOne(ctx, pairFilter(identifier, purpose))
	return err
}

func (c *otpChallengeDatabase) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return c.db.Collection(otpChallengeName).DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
}
