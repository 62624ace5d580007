package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
)

const (
	auditorTag = "notification-service-dlq-auditor"
	// One dead letter at a time: a store outage then stalls a single message.
	auditorPrefetch = 1
)

// DeadLetterAuditor drains the dead-letter queue into an audit repository.
// A message is acked only once it is stored; a failed insert requeues it
// after the retry delay.
type DeadLetterAuditor struct {
	channels   messaging.ChannelProvider
	repo       domain.DeadLetterRepository
	queue      string
	retryDelay time.Duration
	logger     logging.Logger
}

func NewDeadLetterAuditor(channels messaging.ChannelProvider, repo domain.DeadLetterRepository, queue string, retryDelay time.Duration, logger logging.Logger) *DeadLetterAuditor {
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	return &DeadLetterAuditor{
		channels:   channels,
		repo:       repo,
		queue:      queue,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (a *DeadLetterAuditor) Listen(ctx context.Context) error {
	for {
		ch, err := a.channels.Channel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		deliveries, err := a.subscribe(ch)
		if err != nil {
			a.logger.Error(logging.RabbitMQ, logging.DeadLetter, "failed to subscribe to dead-letter queue", map[logging.ExtraKey]any{
				logging.Queue:        a.queue,
				logging.ErrorMessage: err.Error(),
			})
			if !sleep(ctx, a.retryDelay) {
				return nil
			}
			continue
		}

		if !a.drain(ctx, deliveries) {
			return nil
		}
	}
}

func (a *DeadLetterAuditor) subscribe(ch messaging.Channel) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(auditorPrefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(a.queue, auditorTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", a.queue, err)
	}

	return deliveries, nil
}

// drain returns false when ctx was cancelled.
func (a *DeadLetterAuditor) drain(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			a.record(ctx, d)
		}
	}
}

// record stores d, then acks it. The insert is not cancelled by shutdown;
// only the wait before a requeue is.
func (a *DeadLetterAuditor) record(ctx context.Context, d amqp.Delivery) {
	entry := NewDeadLetterEntry(d)
	extra := map[logging.ExtraKey]any{
		logging.RoutingKey:  entry.RoutingKey,
		logging.DeliveryTag: d.DeliveryTag,
	}

	if err := a.repo.Log(context.WithoutCancel(ctx), entry); err != nil {
		extra[logging.ErrorMessage] = err.Error()
		a.logger.Error(logging.MongoDB, logging.DeadLetter, "failed to record dead letter, requeueing", extra)
		// Requeue goes straight back to this consumer, so hold it first.
		sleep(ctx, a.retryDelay)
		if nackErr := d.Nack(false, true); nackErr != nil {
			a.logger.Error(logging.RabbitMQ, logging.DeadLetter, "failed to requeue dead letter", extra)
		}
		return
	}

	metrics.DeadLettersRecordedTotal.Inc()
	a.logger.Info(logging.MongoDB, logging.DeadLetter, "dead letter recorded", extra)
	if err := d.Ack(false); err != nil {
		extra[logging.ErrorMessage] = err.Error()
		a.logger.Error(logging.RabbitMQ, logging.DeadLetter, "failed to ack dead letter", extra)
	}
}

// NewDeadLetterEntry builds an audit record from a dead-lettered delivery.
// The original routing key, source and reason come from the first x-death
// entry the broker attached; the delivery's own key is the DLX key.
func NewDeadLetterEntry(d amqp.Delivery) *domain.DeadLetterLog {
	entry := domain.NewDeadLetterLog(d.RoutingKey, d.Body)
	entry.ContentType = d.ContentType
	entry.MessageID = d.MessageId

	if deaths, ok := d.Headers["x-death"].([]any); ok && len(deaths) > 0 {
		if death, ok := deaths[0].(amqp.Table); ok {
			if keys, ok := death["routing-keys"].([]any); ok && len(keys) > 0 {
				if key, ok := keys[0].(string); ok {
					entry.RoutingKey = key
				}
			}
			entry.SourceExchange, _ = death["exchange"].(string)
			entry.SourceQueue, _ = death["queue"].(string)
			entry.Reason, _ = death["reason"].(string)
			if count, ok := death["count"].(int64); ok {
				entry.DeathCount = count
			}
			if at, ok := death["time"].(time.Time); ok {
				entry.DeadLetteredAt = at.UTC()
			}
		}
	}

	if len(d.Headers) > 0 {
		entry.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			if k == "x-death" {
				continue
			}
			entry.Headers[k] = fmt.Sprint(v)
		}
	}

	return entry
}
