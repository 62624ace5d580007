package health

type healthResponse struct {
	Status            string `json:"status"`            // ok or degraded
	Timestamp         string `json:"timestamp"`         // RFC3339
	Uptime            string `json:"uptime"`            // time since start, e.g. 2h30m45s
	ActiveConnections int    `json:"activeConnections"` // live websocket sessions
	RabbitMQ          string `json:"rabbitMQ"`          // connected or disconnected
}
