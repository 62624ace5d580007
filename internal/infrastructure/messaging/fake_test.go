package messaging

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker records declared entities and rejects redeclarations with
// different parameters the way RabbitMQ does (406 PRECONDITION_FAILED).
type fakeBroker struct {
	mu        sync.Mutex
	exchanges map[string]string
	queues    map[string]amqp.Table
	bindings  map[string][]string
	published []amqp.Publishing
	keys      []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: map[string]string{},
		queues:    map[string]amqp.Table{},
		bindings:  map[string][]string{},
	}
}

type fakeChannel struct {
	broker *fakeBroker

	mu       sync.Mutex
	closed   bool
	notifies []chan *amqp.Error
	qos      int
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.exchanges[name]; ok && existing != kind {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg 'type' for exchange " + name}
	}
	b.exchanges[name] = kind
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.queues[name]; ok && !sameArgs(existing, args) {
		return amqp.Queue{}, &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg for queue " + name}
	}
	b.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[exchange]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "no exchange " + exchange}
	}
	binding := exchange + "/" + key
	for _, existing := range b.bindings[name] {
		if existing == binding {
			return nil
		}
	}
	b.bindings[name] = append(b.bindings[name], binding)
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = prefetchCount
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return nil, errors.New("not supported by fake")
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
	b.keys = append(b.keys, key)
	return nil
}

func (c *fakeChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifies = append(c.notifies, ch)
	return ch
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown closes the channel, delivering reason to listeners first.
func (c *fakeChannel) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, n := range c.notifies {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
}

// fakeConnection keeps the first channel it opened as channel; later ones
// are only in channels.
type fakeConnection struct {
	broker   *fakeBroker
	channel  *fakeChannel
	channels []*fakeChannel

	mu     sync.Mutex
	closed bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := &fakeChannel{broker: c.broker}
	if c.channel == nil {
		c.channel = ch
	}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	return ch
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes every channel opened on the connection, as the broker does.
func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	channels := c.channels
	c.mu.Unlock()

	for _, ch := range channels {
		ch.shutdown(nil)
	}
	return nil
}

// fakeDialer fails the first failures dials, then succeeds.
type fakeDialer struct {
	broker   *fakeBroker
	failures int

	mu    sync.Mutex
	dials int
	conns []*fakeConnection
}

func (d *fakeDialer) Dial(string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.dials <= d.failures {
		return nil, fmt.Errorf("dial %d: connection refused", d.dials)
	}
	conn := &fakeConnection{broker: d.broker}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func sameArgs(a, b amqp.Table) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
