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

var _ repository.RecommendationRepository = (*Store)(nil)

func (s *Store) Create(ctx context.Context, rec *model.Recommendation) error {
	rec.ID = xid.New().String()
	rec.CreatedAt = time.Now().UTC()

	if _, err := s.recommendations.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo: creating recommendation: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Recommendation, error) {
	var rec model.Recommendation
	if err := s.recommendations.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("recommendation", id)
		}
		return nil, fmt.Errorf("mongo: getting recommendation %s: %w", id, err)
	}
	return &rec, nil
}

// List sorts on createdAt then _id, both descending. xid ids embed their
// creation time and a counter, so _id breaks createdAt ties in insertion
// order.
func (s *Store) List(ctx context.Context, opts repository.ListOptions) ([]model.Recommendation, error) {
	limit := opts.EffectiveLimit()

	filter := bson.M{}
	if opts.Genre != "" {
		filter["genre"] = opts.Genre
	}
	if opts.OwnerID != "" {
		filter["ownerId"] = opts.OwnerID
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.recommendations.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing recommendations: %w", err)
	}
	defer cur.Close(ctx)

	recs := make([]model.Recommendation, 0, limit)
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("mongo: decoding recommendations: %w", err)
	}
	return recs, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.recommendations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting recommendation %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("recommendation", id)
	}
	return nil
}

// MarkStaffPick checks MatchedCount, not ModifiedCount: re-marking an
// existing pick modifies nothing but must still succeed.
func (s *Store) MarkStaffPick(ctx context.Context, id string) error {
	res, err := s.recommendations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isStaffPick": true}},
	)
	if err != nil {
		return fmt.Errorf("mongo: marking staff pick %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("recommendation", id)
	}
	return nil
}
