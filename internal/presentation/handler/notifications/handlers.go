package notifications

import (
	"math"
	"net/http"

	"github.com/se360/notification-service/internal/infrastructure/json"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
	"github.com/se360/notification-service/internal/infrastructure/ratelimiter"
)

// Handler serves the realtime notification stream. It throttles handshake
// attempts per source before the gateway authenticates and upgrades.
type Handler struct {
	gateway http.Handler
	limiter ratelimiter.Limiter
	logger  logging.Logger
}

func NewHandler(gateway http.Handler, limiter ratelimiter.Limiter, logger logging.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		limiter: limiter,
		logger:  logger,
	}
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	source := h.limiter.GetSourceKey(r)
	if !h.limiter.Allow(r.Context(), source) {
		metrics.HandshakeRejectionsTotal.WithLabelValues("rate_limited").Inc()
		h.logger.Warn(logging.WebSocket, logging.RateLimiting, "handshake rate limit exceeded", map[logging.ExtraKey]any{
			logging.ClientIp: source,
			logging.Path:     r.URL.Path,
		})
		json.WriteRateLimitError(w, int(math.Ceil(h.limiter.RetryAfter().Seconds())))
		return
	}

	h.gateway.ServeHTTP(w, r)
}
