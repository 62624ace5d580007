package messaging

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/se360/notification-service/internal/infrastructure/contracts"
)

// ErrTopologyConflict is returned when an exchange or queue already exists
// with different parameters. It is a configuration error and is not retried.
var ErrTopologyConflict = errors.New("topology conflicts with existing broker entity")

// Topology describes the exchanges, queues and bindings the consumer needs.
// Declaring it is idempotent: every declaration uses the same parameters.
type Topology struct {
	Exchange             string
	DeadLetterExchange   string
	Queue                string
	DeadLetterQueue      string
	DeadLetterRoutingKey string
	RoutingKeys          []string
}

// QueueArgs are the arguments the main queue is declared with.
func (t Topology) QueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    t.DeadLetterExchange,
		"x-dead-letter-routing-key": t.DeadLetterRoutingKey,
	}
}

// Declare creates the dead-letter side first so the main queue's
// dead-letter arguments never point at a missing exchange.
func (t Topology) Declare(ch Channel) error {
	if err := ch.ExchangeDeclare(
		t.DeadLetterExchange, // name
		amqp.ExchangeTopic,   // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	); err != nil {
		return wrapDeclareError("declare dead-letter exchange "+t.DeadLetterExchange, err)
	}

	if _, err := ch.QueueDeclare(
		t.DeadLetterQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return wrapDeclareError("declare dead-letter queue "+t.DeadLetterQueue, err)
	}

	if err := ch.QueueBind(t.DeadLetterQueue, contracts.DeadLetterCatchAll, t.DeadLetterExchange, false, nil); err != nil {
		return wrapDeclareError("bind dead-letter queue "+t.DeadLetterQueue, err)
	}

	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return wrapDeclareError("declare exchange "+t.Exchange, err)
	}

	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.QueueArgs()); err != nil {
		return wrapDeclareError("declare queue "+t.Queue, err)
	}

	for _, key := range t.RoutingKeys {
		if err := ch.QueueBind(
			t.Queue,    // queue name
			key,        // routing key
			t.Exchange, // exchange
			false,
			nil,
		); err != nil {
			return wrapDeclareError(fmt.Sprintf("bind queue %s to %s", t.Queue, key), err)
		}
	}

	return nil
}

func wrapDeclareError(op string, err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
		return fmt.Errorf("%w: %s: %v", ErrTopologyConflict, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
