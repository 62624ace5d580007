package messaging

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopology() Topology {
	return Topology{
		Exchange:             "trip_events",
		DeadLetterExchange:   "trip_events_dlx",
		Queue:                "notification_queue",
		DeadLetterQueue:      "notification_queue.dlq",
		DeadLetterRoutingKey: "dead",
		RoutingKeys:          []string{"trip.assigned", "trip.started", "trip.completed", "trip.cancelled", "payment.success"},
	}
}

func TestTopology_Declare(t *testing.T) {
	broker := newFakeBroker()
	ch := &fakeChannel{broker: broker}

	require.NoError(t, testTopology().Declare(ch))

	assert.Equal(t, amqp.ExchangeTopic, broker.exchanges["trip_events"])
	assert.Equal(t, amqp.ExchangeTopic, broker.exchanges["trip_events_dlx"])
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    "trip_events_dlx",
		"x-dead-letter-routing-key": "dead",
	}, broker.queues["notification_queue"])
	assert.Contains(t, broker.queues, "notification_queue.dlq")
	assert.Equal(t, []string{"trip_events_dlx/#"}, broker.bindings["notification_queue.dlq"])
	assert.Len(t, broker.bindings["notification_queue"], 5)
	assert.Contains(t, broker.bindings["notification_queue"], "trip_events/payment.success")
}

func TestTopology_DeclareIsIdempotent(t *testing.T) {
	broker := newFakeBroker()
	ch := &fakeChannel{broker: broker}
	topo := testTopology()

	require.NoError(t, topo.Declare(ch))
	require.NoError(t, topo.Declare(ch))

	assert.Len(t, broker.exchanges, 2)
	assert.Len(t, broker.queues, 2)
	assert.Len(t, broker.bindings["notification_queue"], 5)
}

func TestTopology_ConflictingQueue(t *testing.T) {
	broker := newFakeBroker()
	broker.queues["notification_queue"] = amqp.Table{"x-message-ttl": int32(1000)}
	ch := &fakeChannel{broker: broker}

	err := testTopology().Declare(ch)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTopologyConflict)
}

func TestTopology_ConflictingExchangeType(t *testing.T) {
	broker := newFakeBroker()
	broker.exchanges["trip_events"] = amqp.ExchangeDirect
	ch := &fakeChannel{broker: broker}

	err := testTopology().Declare(ch)

	assert.ErrorIs(t, err, ErrTopologyConflict)
}
