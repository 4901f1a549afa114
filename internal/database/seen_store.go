package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProcessedWebhookDocument represents the MongoDB document for a seen webhook key
type ProcessedWebhookDocument struct {
	Key    string    `bson:"_id"`
	SeenAt time.Time `bson:"seenAt"`
}

// Save upserts key with the current time, so a re-seen key moves to the end
// of the window on reload.
func (m *MongoDB) Save(ctx context.Context, key string) error {
	filter := bson.M{"_id": key}
	update := bson.M{"$set": bson.M{"seenAt": time.Now().UTC()}}

	_, err := m.ProcessedWebhooks.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save processed webhook %q: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (m *MongoDB) Delete(ctx context.Context, key string) error {
	if _, err := m.ProcessedWebhooks.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete processed webhook %q: %w", key, err)
	}
	return nil
}

// Recent returns the newest limit keys, oldest first
func (m *MongoDB) Recent(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seenAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.ProcessedWebhooks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed webhooks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ProcessedWebhookDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode processed webhooks: %w", err)
	}

	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[len(docs)-1-i] = doc.Key
	}
	return keys, nil
}

// Prune deletes everything but the newest keep keys
func (m *MongoDB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("prune keep must be positive, got %d", keep)
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "seenAt", Value: -1}}).
		SetSkip(int64(keep - 1))

	var boundary ProcessedWebhookDocument
	err := m.ProcessedWebhooks.FindOne(ctx, bson.M{}, opts).Decode(&boundary)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find prune boundary: %w", err)
	}

	res, err := m.ProcessedWebhooks.DeleteMany(ctx, bson.M{"seenAt": bson.M{"$lt": boundary.SeenAt}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune processed webhooks: %w", err)
	}
	return res.DeletedCount, nil
}
