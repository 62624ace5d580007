package repository

import (
	"context"
	"time"

	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// deadLetterRetention is how long audit records are kept before the TTL
// index removes them.
const deadLetterRetention = 30 * 24 * time.Hour

type deadLetterLogRepository struct {
	collection *mongo.Collection
}

func NewDeadLetterLogRepository(database *mongo.Database, collection string) domain.DeadLetterRepository {
	if collection == "" {
		collection = db.DeadLettersCollection
	}
	return &deadLetterLogRepository{
		collection: database.Collection(collection),
	}
}

func (r *deadLetterLogRepository) Log(ctx context.Context, log *domain.DeadLetterLog) error {
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *deadLetterLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "routing_key", Value: 1},
				{Key: "dead_lettered_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "recorded_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(deadLetterRetention.Seconds())),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
