package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationTripAssigned   NotificationType = "TRIP_ASSIGNED"
	NotificationTripStarted    NotificationType = "TRIP_STARTED"
	NotificationTripCompleted  NotificationType = "TRIP_COMPLETED"
	NotificationTripCancelled  NotificationType = "TRIP_CANCELLED"
	NotificationPaymentSuccess NotificationType = "PAYMENT_SUCCESS"
)

// Notification is built per dispatch and discarded after the send attempt.
type Notification struct {
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
