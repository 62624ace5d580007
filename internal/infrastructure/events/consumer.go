package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	consumerTag     = "notification-service"
	tracerName      = "github.com/se360/notification-service/events"
	defaultPrefetch = 100
	unknownKeyLabel = "unknown"
)

type ConsumerOptions struct {
	Queue    string
	Prefetch int
	// RetryDelay is how long to wait before resubscribing after Consume fails.
	RetryDelay time.Duration
}

// Consumer pulls trip events from the notification queue and hands them to
// the Router. At most Prefetch messages are unacknowledged at once and the
// same number of workers handle them, so the broker is the only buffer.
type Consumer struct {
	channels   messaging.ChannelProvider
	router     *Router
	queue      string
	prefetch   int
	retryDelay time.Duration
	logger     logging.Logger
	tracer     trace.Tracer
}

func NewConsumer(channels messaging.ChannelProvider, router *Router, opts ConsumerOptions, logger logging.Logger) *Consumer {
	if opts.Prefetch <= 0 {
		opts.Prefetch = defaultPrefetch
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	return &Consumer{
		channels:   channels,
		router:     router,
		queue:      opts.Queue,
		prefetch:   opts.Prefetch,
		retryDelay: opts.RetryDelay,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Listen consumes until ctx is cancelled, resubscribing whenever the
// delivery stream ends. It returns nil on cancellation and an error only
// when the broker cannot be used at all (for example a topology conflict).
func (c *Consumer) Listen(ctx context.Context) error {
	for {
		ch, err := c.channels.Channel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		deliveries, err := c.subscribe(ch)
		if err != nil {
			c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to subscribe", map[logging.ExtraKey]any{
				logging.Queue:        c.queue,
				logging.ErrorMessage: err.Error(),
			})
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		c.logger.Info(logging.RabbitMQ, logging.Consume, "consuming", map[logging.ExtraKey]any{
			logging.Queue: c.queue,
			"prefetch":    c.prefetch,
		})

		c.work(ctx, deliveries)

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn(logging.RabbitMQ, logging.Consume, "delivery stream closed, resubscribing", map[logging.ExtraKey]any{
			logging.Queue: c.queue,
		})
	}
}

func (c *Consumer) subscribe(ch messaging.Channel) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,     // queue
		consumerTag, // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	return deliveries, nil
}

// work runs prefetch workers over deliveries until the stream closes or ctx
// is cancelled. Handlers already running are allowed to finish and ack.
func (c *Consumer) work(ctx context.Context, deliveries <-chan amqp.Delivery) {
	handleCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.prefetch; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.handle(handleCtx, d)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "notification.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", c.queue),
			attribute.String("messaging.rabbitmq.destination.routing_key", d.RoutingKey),
		),
	)
	defer span.End()

	extra := map[logging.ExtraKey]any{
		logging.RoutingKey:  d.RoutingKey,
		logging.DeliveryTag: d.DeliveryTag,
		logging.Redelivered: d.Redelivered,
	}

	err := c.router.Route(ctx, d.RoutingKey, d.Body)

	var outcome string
	switch {
	case err == nil:
		outcome = metrics.OutcomeAcked
		if ackErr := d.Ack(false); ackErr != nil {
			c.logAckFailure(extra, ackErr)
		}
	case errors.Is(err, ErrUnknownRoutingKey):
		outcome = metrics.OutcomeDropped
		c.logger.Warn(logging.RabbitMQ, logging.Consume, "no handler for routing key, dropping", extra)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logAckFailure(extra, ackErr)
		}
	default:
		outcome = metrics.OutcomeDeadLettered
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		extra[logging.ErrorMessage] = err.Error()
		c.logger.Error(logging.RabbitMQ, logging.DeadLetter, "handler failed, dead-lettering message", extra)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logAckFailure(extra, nackErr)
		}
	}

	span.SetAttributes(attribute.String("notification.outcome", outcome))

	// Unknown keys share one label so producers cannot grow the series set.
	label := d.RoutingKey
	if outcome == metrics.OutcomeDropped {
		label = unknownKeyLabel
	}
	metrics.EventsConsumedTotal.WithLabelValues(label, outcome).Inc()
	metrics.EventHandlingDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
}

func (c *Consumer) logAckFailure(extra map[logging.ExtraKey]any, err error) {
	c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to settle delivery", map[logging.ExtraKey]any{
		logging.RoutingKey:   extra[logging.RoutingKey],
		logging.DeliveryTag:  extra[logging.DeliveryTag],
		logging.ErrorMessage: err.Error(),
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
