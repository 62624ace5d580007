package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON messages to the trip exchange. The service itself
// never publishes; the dev CLI and tests do.
type Publisher struct {
	channels ChannelProvider
	exchange string
}

func NewPublisher(channels ChannelProvider, exchange string) *Publisher {
	return &Publisher{
		channels: channels,
		exchange: exchange,
	}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	ch, err := p.channels.Channel(ctx)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	return nil
}
