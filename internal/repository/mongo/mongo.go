// Package mongo implements the repository interfaces on MongoDB, the
// document-database deployment option.
//
// Atomicity comes from single-document operations: FindOneAndUpdate with
// upsert for identity sync, DeleteOne and UpdateOne for recommendation
// mutations. Nothing here spans more than one document per write.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection           = "users"
	recommendationsCollection = "recommendations"
)

// Store holds the client and both collections. It implements
// repository.UserRepository and repository.RecommendationRepository.
type Store struct {
	client          *mongo.Client
	users           *mongo.Collection
	recommendations *mongo.Collection
}

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := newStore(client, client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:          client,
		users:           db.Collection(usersCollection),
		recommendations: db.Collection(recommendationsCollection),
	}
}

// ensureIndexes creates the unique externalId index that backs the
// one-user-per-identity invariant, plus the list indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "externalId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating users index: %w", err)
	}

	_, err = s.recommendations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "genre", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating recommendations indexes: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
