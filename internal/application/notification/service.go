package notification

import (
	"context"

	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/metrics"
)

// EventName is the realtime event every notification is pushed under.
const EventName = "notification"

// Sender delivers a payload to every live session of a user and reports
// whether the user had any.
type Sender interface {
	SendToUser(userID, event string, payload any) bool
}

type Service struct {
	sender Sender
	logger logging.Logger
}

func NewService(sender Sender, logger logging.Logger) *Service {
	return &Service{
		sender: sender,
		logger: logger,
	}
}

// Dispatch pushes each notification to its recipient. Offline recipients are
// dropped without retry; that is not an error.
func (s *Service) Dispatch(ctx context.Context, notifications []domain.Notification) {
	for _, n := range notifications {
		extra := map[logging.ExtraKey]any{
			logging.UserID:    n.UserID,
			logging.NotifType: n.Type,
		}

		if s.sender.SendToUser(n.UserID, EventName, n) {
			metrics.NotificationsTotal.WithLabelValues(string(n.Type), metrics.ResultDelivered).Inc()
			s.logger.Info(logging.Notification, logging.Dispatch, "notification sent", extra)
			continue
		}

		metrics.NotificationsTotal.WithLabelValues(string(n.Type), metrics.ResultOffline).Inc()
		s.logger.Info(logging.Notification, logging.Dispatch, "user offline, notification dropped", extra)
	}
}
