package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

// UpsertByExternalID refreshes profile fields with $set and seeds id, role
// and createdAt with $setOnInsert, so an existing role is never overwritten.
func (s *Store) UpsertByExternalID(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	filter := bson.M{"externalId": user.ExternalID}
	update := bson.M{
		"$set": bson.M{
			"email":       user.Email,
			"displayName": user.DisplayName,
			"avatarUrl":   user.AvatarURL,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"_id":       xid.New().String(),
			"role":      model.RoleUser,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.User
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("mongo: upserting user (externalID=%s): %w", user.ExternalID, err)
	}
	*user = stored
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"externalId": externalID}, externalID)
}

func (s *Store) findUser(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", key, err)
	}
	return &u, nil
}

// GetUsersByIDs loads the listed users with one $in query.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongo: batch loading users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]model.User, 0, len(ids))
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}
	return users, nil
}

func (s *Store) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	res, err := s.users.DeleteOne(ctx, bson.M{"externalId": externalID})
	if err != nil {
		return false, fmt.Errorf("mongo: deleting user %s: %w", externalID, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) SetRole(ctx context.Context, id string, role model.Role) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: setting role for user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
