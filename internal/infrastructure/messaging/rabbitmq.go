package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
)

var ErrClosed = errors.New("rabbitmq supervisor closed")

const defaultReconnectDelay = 5 * time.Second

type Options struct {
	URI            string
	Topology       Topology
	ReconnectDelay time.Duration
	Dialer         Dialer
	Logger         logging.Logger
}

// RabbitMQ owns the broker connection and channel. Channel lazily connects
// and redeclares the topology; connection attempts are serialized so at most
// one is in flight.
type RabbitMQ struct {
	uri            string
	topology       Topology
	reconnectDelay time.Duration
	dial           Dialer
	logger         logging.Logger

	mu       sync.Mutex
	conn     Connection
	channel  Channel
	closed   bool
	attempts int

	connected atomic.Bool
}

func NewRabbitMQ(opts Options) *RabbitMQ {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = DialAMQP
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	return &RabbitMQ{
		uri:            opts.URI,
		topology:       opts.Topology,
		reconnectDelay: opts.ReconnectDelay,
		dial:           opts.Dialer,
		logger:         opts.Logger,
	}
}

// Channel returns the live channel, connecting first if there is none. On
// connectivity failure it retries every reconnect delay until it succeeds or
// ctx is done. A topology conflict is returned immediately.
func (r *RabbitMQ) Channel(ctx context.Context) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.channel != nil && !r.channel.IsClosed() {
		return r.channel, nil
	}

	for attempt := 1; ; attempt++ {
		err := r.connect()
		if err == nil {
			return r.channel, nil
		}
		if errors.Is(err, ErrTopologyConflict) {
			r.logger.Error(logging.RabbitMQ, logging.Topology, "topology conflict, not retrying", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return nil, err
		}

		r.logger.Error(logging.RabbitMQ, logging.Connection, "connection failed, retrying", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.Attempt:      attempt,
			"retry_in":           r.reconnectDelay.String(),
		})

		timer := time.NewTimer(r.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Connected reports whether a live channel is currently held.
func (r *RabbitMQ) Connected() bool {
	return r.connected.Load()
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	err := r.teardown()
	r.logger.Info(logging.RabbitMQ, logging.Connection, "connection closed", nil)
	return err
}

// connect must be called with mu held.
func (r *RabbitMQ) connect() error {
	_ = r.teardown()

	r.attempts++
	if r.attempts > 1 {
		metrics.BrokerReconnectsTotal.Inc()
	}

	conn, err := r.dial(r.uri)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := r.topology.Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	r.conn = conn
	r.channel = ch
	r.setConnected(true)

	go r.watch(conn, ch)

	r.logger.Info(logging.RabbitMQ, logging.Connection, "connected and topology declared", map[logging.ExtraKey]any{
		logging.Exchange: r.topology.Exchange,
		logging.Queue:    r.topology.Queue,
		"routing_keys":   r.topology.RoutingKeys,
	})

	return nil
}

// watch flips the connected flag when either the channel or its connection
// goes away. The next Channel call reconnects.
func (r *RabbitMQ) watch(conn Connection, ch Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	var reason *amqp.Error
	select {
	case reason = <-connClosed:
	case reason = <-chClosed:
	}

	r.mu.Lock()
	if r.channel == ch {
		r.setConnected(false)
	}
	r.mu.Unlock()

	extra := map[logging.ExtraKey]any{}
	if reason != nil {
		extra[logging.ErrorMessage] = reason.Error()
	}
	r.logger.Warn(logging.RabbitMQ, logging.Connection, "channel closed", extra)
}

func (r *RabbitMQ) teardown() error {
	var errs []error
	if r.channel != nil && !r.channel.IsClosed() {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil && !r.conn.IsClosed() {
		errs = append(errs, r.conn.Close())
	}
	r.channel = nil
	r.conn = nil
	r.setConnected(false)
	return errors.Join(errs...)
}

func (r *RabbitMQ) setConnected(v bool) {
	r.connected.Store(v)
	if v {
		metrics.BrokerConnected.Set(1)
	} else {
		metrics.BrokerConnected.Set(0)
	}
}

// Dedicated returns a provider for a second channel on the supervised
// connection. Consumers with their own QoS use it so their prefetch does not
// leak onto the shared channel.
func (r *RabbitMQ) Dedicated() ChannelProvider {
	return &dedicatedChannel{supervisor: r}
}

type dedicatedChannel struct {
	supervisor *RabbitMQ

	mu      sync.Mutex
	channel Channel
}

// Channel reuses the open dedicated channel or opens a new one, connecting
// through the supervisor first.
func (d *dedicatedChannel) Channel(ctx context.Context) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel != nil && !d.channel.IsClosed() {
		return d.channel, nil
	}

	for {
		if _, err := d.supervisor.Channel(ctx); err != nil {
			return nil, err
		}

		ch, err := d.supervisor.openChannel()
		if err == nil {
			d.channel = ch
			return ch, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}

		d.supervisor.logger.Warn(logging.RabbitMQ, logging.Connection, "failed to open dedicated channel, retrying", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		timer := time.NewTimer(d.supervisor.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RabbitMQ) openChannel() (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.conn == nil || r.conn.IsClosed() {
		return nil, errors.New("no live connection")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return ch, nil
}
