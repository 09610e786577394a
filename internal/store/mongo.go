package store

import (
	"context"
	"fmt"
	"time"

	"janus/internal/database"
	"janus/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB
type MongoStore struct {
	db        *database.MongoDB
	users     *mongo.Collection
	captures  *mongo.Collection
	briefings *mongo.Collection
}

// NewMongoStore creates a store over an initialized MongoDB connection
func NewMongoStore(db *database.MongoDB) *MongoStore {
	return &MongoStore{
		db:        db,
		users:     db.Collection(database.CollectionUsers),
		captures:  db.Collection(database.CollectionCaptures),
		briefings: db.Collection(database.CollectionBriefings),
	}
}

// SaveCapture inserts a new capture with a fresh id
func (s *MongoStore) SaveCapture(ctx context.Context, capture *models.Capture) (string, error) {
	capture.ID = uuid.New().String()
	capture.Processed = false
	capture.Summary = ""
	if capture.Timestamp.IsZero() {
		capture.Timestamp = time.Now().UTC()
	}

	if _, err := s.captures.InsertOne(ctx, capture); err != nil {
		return "", fmt.Errorf("failed to insert capture: %w", err)
	}
	return capture.ID, nil
}

// ListProcessedCaptures returns processed captures for one user, newest first
func (s *MongoStore) ListProcessedCaptures(ctx context.Context, userID string, limit int) ([]models.Capture, error) {
	filter := bson.M{"userId": userID, "processed": true}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	return findAll[models.Capture](ctx, s.captures, filter, opts)
}

// ListUnprocessedCapturesSince returns pending captures of every user at or after cutoff
func (s *MongoStore) ListUnprocessedCapturesSince(ctx context.Context, cutoff time.Time) ([]models.Capture, error) {
	filter := bson.M{
		"processed": false,
		"timestamp": bson.M{"$gte": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	return findAll[models.Capture](ctx, s.captures, filter, opts)
}

// MarkSummarized performs a point update on (userId, id)
func (s *MongoStore) MarkSummarized(ctx context.Context, userID, captureID, summary string) error {
	result, err := s.captures.UpdateOne(ctx,
		bson.M{"_id": captureID, "userId": userID},
		bson.M{"$set": bson.M{"summary": summary, "processed": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark capture summarized: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBriefing inserts a new briefing with a fresh id
func (s *MongoStore) SaveBriefing(ctx context.Context, briefing *models.Briefing) (string, error) {
	briefing.ID = uuid.New().String()
	if briefing.CreatedAt.IsZero() {
		briefing.CreatedAt = time.Now().UTC()
	}

	if _, err := s.briefings.InsertOne(ctx, briefing); err != nil {
		return "", fmt.Errorf("failed to insert briefing: %w", err)
	}
	return briefing.ID, nil
}

// ListBriefings returns briefings for one user, newest first
func (s *MongoStore) ListBriefings(ctx context.Context, userID string, limit int) ([]models.Briefing, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	return findAll[models.Briefing](ctx, s.briefings, bson.M{"userId": userID}, opts)
}

// UpsertUser creates the user on first sight and refreshes profile fields after
func (s *MongoStore) UpsertUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	now := time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"email":      identity.Email,
			"name":       identity.Name,
			"lastSeenAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	if err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": identity.UID}, update, opts).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	results := make([]T, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return results, nil
}
