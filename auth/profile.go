package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/consulthub/consulthub-api/databases"
	"github.com/consulthub/consulthub-api/models"
)

const profileTimeout = 5 * time.Second

// ProfileLookup resolves a user id to its public profile. A nil profile with a
// nil error means the user does not exist.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// MongoProfiles looks profiles up in the users collection
type MongoProfiles struct {
	DB databases.UserDatabase
}

// NewMongoProfiles returns a ProfileLookup backed by mongo
func NewMongoProfiles(db databases.UserDatabase) *MongoProfiles {
	return &MongoProfiles{DB: db}
}

// GetProfile finds the user by _id. Ids that look like an ObjectID are matched
// as one, anything else as a plain string.
func (m *MongoProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()

	var filter bson.M
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		filter = bson.M{"_id": oid}
	} else {
		filter = bson.M{"_id": userID}
	}

	user, err := m.DB.FindOne(ctx, filter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	if profile.ID == "" {
		profile.ID = userID
	}
	return &profile, nil
}
