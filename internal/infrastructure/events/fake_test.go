package events

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
)

type settlement struct {
	tag     uint64
	acked   bool
	requeue bool
}

// fakeAcknowledger records how each delivery was settled.
type fakeAcknowledger struct {
	mu      sync.Mutex
	settled map[uint64]settlement
	order   []uint64
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{settled: map[uint64]settlement{}}
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.record(settlement{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.record(settlement{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) record(s settlement) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settled[s.tag] = s
	a.order = append(a.order, s.tag)
}

func (a *fakeAcknowledger) get(tag uint64) (settlement, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.settled[tag]
	return s, ok
}

func (a *fakeAcknowledger) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.settled)
}

func delivery(ack amqp.Acknowledger, tag uint64, key, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		RoutingKey:   key,
		Body:         []byte(body),
	}
}

// fakeChannel serves a fixed delivery stream. Unused Channel methods panic
// through the nil embedded interface.
type fakeChannel struct {
	messaging.Channel

	deliveries chan amqp.Delivery

	mu       sync.Mutex
	qos      int
	consumed []string
}

func (c *fakeChannel) Qos(prefetch, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = prefetch
	return nil
}

func (c *fakeChannel) Consume(queue, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if autoAck {
		panic("consumer must use manual acknowledgement")
	}
	c.consumed = append(c.consumed, queue)
	return c.deliveries, nil
}

// fakeProvider returns its channel once, then blocks until ctx is done.
type fakeProvider struct {
	ch *fakeChannel

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Channel(ctx context.Context) (messaging.Channel, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()

	if first {
		return p.ch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type providerFunc func(ctx context.Context) (messaging.Channel, error)

func (f providerFunc) Channel(ctx context.Context) (messaging.Channel, error) {
	return f(ctx)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, notifications []domain.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, notifications...)
}

func (d *recordingDispatcher) recipients() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sent))
	for _, n := range d.sent {
		out = append(out, n.UserID)
	}
	return out
}
