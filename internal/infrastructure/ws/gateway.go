package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/se360/notification-service/internal/infrastructure/auth"
	httpjson "github.com/se360/notification-service/internal/infrastructure/json"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
)

// Authenticator verifies a bearer token and returns the identity it names.
type Authenticator interface {
	Validate(token string) (*auth.Identity, error)
}

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Gateway authenticates websocket handshakes, owns the connection registry
// and fans notifications out to every session of a user.
type Gateway struct {
	registry *Registry
	authn    Authenticator
	upgrader websocket.Upgrader
	opts     Options
	logger   logging.Logger
}

func NewGateway(authn Authenticator, opts Options, logger logging.Logger) *Gateway {
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	g := &Gateway{
		registry: NewRegistry(),
		authn:    authn,
		opts:     opts,
		logger:   logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// ServeHTTP authenticates the request before upgrading. A request without a
// valid token gets 401 and never reaches the registry.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.authn.Validate(auth.ExtractToken(r))
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, auth.ErrMissingToken) {
			reason = "missing_token"
		}
		metrics.HandshakeRejectionsTotal.WithLabelValues(reason).Inc()
		g.logger.Warn(logging.Auth, logging.Handshake, "connection rejected", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		httpjson.WriteUnauthorized(w)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.HandshakeRejectionsTotal.WithLabelValues("upgrade_failed").Inc()
		g.logger.Warn(logging.WebSocket, logging.Handshake, "upgrade failed", map[logging.ExtraKey]any{
			logging.UserID:       identity.UserID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := NewClient(conn, identity.UserID, identity.Role, g.opts.SendBuffer)
	// Queued before register: once registered, Shutdown may close send.
	if frame, err := json.Marshal(NewConnected(client.ID, client.UserID)); err == nil {
		client.enqueue(frame)
	}
	g.register(client)

	go client.writePump(g)
	go client.readPump(g)
}

// SendToUser pushes event to every live session of userID and reports
// whether there was at least one. A slow or broken session only loses its
// own copy.
func (g *Gateway) SendToUser(userID, event string, payload any) bool {
	frame, err := json.Marshal(NewMessage(event, payload))
	if err != nil {
		g.logger.Error(logging.WebSocket, logging.Push, "failed to encode message", map[logging.ExtraKey]any{
			logging.UserID:       userID,
			logging.ErrorMessage: err.Error(),
		})
		return false
	}

	sessions := g.registry.ForEach(userID, func(c *Client) {
		if c.enqueue(frame) {
			return
		}
		metrics.PushFailuresTotal.Inc()
		g.logger.Warn(logging.WebSocket, logging.Push, "send buffer full, dropping message for connection", map[logging.ExtraKey]any{
			logging.UserID:       userID,
			logging.ConnectionID: c.ID,
		})
	})

	return sessions > 0
}

// Count is the number of live connections across all users.
func (g *Gateway) Count() int {
	return g.registry.Count()
}

func (g *Gateway) IsConnected(userID string) bool {
	return g.registry.Has(userID)
}

// Shutdown closes every session with a going-away frame.
func (g *Gateway) Shutdown() {
	clients := g.registry.Drain()
	metrics.LiveConnections.Set(0)
	g.logger.Info(logging.WebSocket, logging.Shutdown, "closed all connections", map[logging.ExtraKey]any{
		logging.Connections: len(clients),
	})
}

func (g *Gateway) register(c *Client) {
	g.registry.Add(c)
	count := g.registry.Count()
	metrics.LiveConnections.Set(float64(count))

	g.logger.Info(logging.WebSocket, logging.Handshake, "client connected", map[logging.ExtraKey]any{
		logging.UserID:       c.UserID,
		logging.ConnectionID: c.ID,
		logging.Connections:  count,
	})
}

func (g *Gateway) unregister(c *Client) {
	if !g.registry.Remove(c) {
		return
	}
	count := g.registry.Count()
	metrics.LiveConnections.Set(float64(count))

	g.logger.Info(logging.WebSocket, logging.Disconnect, "client disconnected", map[logging.ExtraKey]any{
		logging.UserID:       c.UserID,
		logging.ConnectionID: c.ID,
		logging.Connections:  count,
	})
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 || slices.Contains(g.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(g.opts.AllowedOrigins, origin)
}

func (g *Gateway) logReadError(c *Client, err error) {
	g.logger.Warn(logging.WebSocket, logging.Disconnect, "read error", map[logging.ExtraKey]any{
		logging.UserID:       c.UserID,
		logging.ConnectionID: c.ID,
		logging.ErrorMessage: err.Error(),
	})
}

func (g *Gateway) logWriteError(c *Client, err error) {
	g.logger.Warn(logging.WebSocket, logging.Push, "write error", map[logging.ExtraKey]any{
		logging.UserID:       c.UserID,
		logging.ConnectionID: c.ID,
		logging.ErrorMessage: err.Error(),
	})
}
