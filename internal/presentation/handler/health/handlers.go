package health

import (
	"net/http"
	"time"

	"github.com/se360/notification-service/internal/infrastructure/json"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	brokerConnected    = "connected"
	brokerDisconnected = "disconnected"
)

type ConnectionCounter interface {
	Count() int
}

type BrokerState interface {
	Connected() bool
}

type Handler struct {
	connections ConnectionCounter
	broker      BrokerState
	startTime   time.Time
}

func NewHandler(connections ConnectionCounter, broker BrokerState) *Handler {
	return &Handler{
		connections: connections,
		broker:      broker,
		startTime:   time.Now(),
	}
}

// GetHealth reports live connections and broker state. A process without a
// broker channel still serves sockets but cannot deliver, so it reports
// degraded with 503.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:            statusOK,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		ActiveConnections: h.connections.Count(),
		RabbitMQ:          brokerConnected,
	}

	status := http.StatusOK
	if !h.broker.Connected() {
		resp.Status = statusDegraded
		resp.RabbitMQ = brokerDisconnected
		status = http.StatusServiceUnavailable
	}

	json.Write(w, status, resp)
}
