package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadLetterLog records a message that was rejected from the notification
// queue so operators can inspect and replay it.
type DeadLetterLog struct {
	ID             string            `bson:"_id" json:"id"`
	RoutingKey     string            `bson:"routing_key" json:"routingKey"`
	SourceExchange string            `bson:"source_exchange,omitempty" json:"sourceExchange,omitempty"`
	SourceQueue    string            `bson:"source_queue,omitempty" json:"sourceQueue,omitempty"`
	Reason         string            `bson:"reason,omitempty" json:"reason,omitempty"`
	DeathCount     int64             `bson:"death_count" json:"deathCount"`
	ContentType    string            `bson:"content_type,omitempty" json:"contentType,omitempty"`
	MessageID      string            `bson:"message_id,omitempty" json:"messageId,omitempty"`
	Body           string            `bson:"body" json:"body"`
	Headers        map[string]string `bson:"headers,omitempty" json:"headers,omitempty"`
	DeadLetteredAt time.Time         `bson:"dead_lettered_at" json:"deadLetteredAt"`
	RecordedAt     time.Time         `bson:"recorded_at" json:"recordedAt"`
}

type DeadLetterRepository interface {
	Log(ctx context.Context, log *DeadLetterLog) error
	EnsureIndexes(ctx context.Context) error
}

func NewDeadLetterLog(routingKey string, body []byte) *DeadLetterLog {
	now := time.Now().UTC()
	return &DeadLetterLog{
		ID:             uuid.NewString(),
		RoutingKey:     routingKey,
		Body:           string(body),
		DeadLetteredAt: now,
		RecordedAt:     now,
	}
}
