// Package notification turns trip and payment events into the notifications
// pushed to passengers and drivers.
package notification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/se360/notification-service/internal/domain"
)

// defaultReason is used when a cancellation carries no reason.
const defaultReason = "N/A"

// The Build functions are pure: the same event, payload and clock value
// always yield the same notifications. payload is the original message body
// and is attached to every notification unchanged.

func BuildTripAssigned(e domain.TripAssigned, payload json.RawMessage, now time.Time) []domain.Notification {
	return []domain.Notification{
		newNotification(e.PassengerID, domain.NotificationTripAssigned, "Driver Assigned",
			fmt.Sprintf("Driver %s (%s) is on the way. ETA: %s mins.",
				e.DriverName, e.VehiclePlate, formatNumber(e.ETAMinutes)),
			payload, now),
	}
}

func BuildTripStarted(e domain.TripStarted, payload json.RawMessage, now time.Time) []domain.Notification {
	return []domain.Notification{
		newNotification(e.PassengerID, domain.NotificationTripStarted, "Trip Started",
			"Your trip has started.", payload, now),
	}
}

// BuildTripCompleted notifies both sides of the trip with the same fare.
func BuildTripCompleted(e domain.TripCompleted, payload json.RawMessage, now time.Time) []domain.Notification {
	fare := formatNumber(e.Fare)

	return []domain.Notification{
		newNotification(e.PassengerID, domain.NotificationTripCompleted, "Trip Completed",
			fmt.Sprintf("Your trip has been completed. Fare: %s", fare), payload, now),
		newNotification(e.DriverID, domain.NotificationTripCompleted, "Trip Completed",
			fmt.Sprintf("Trip completed. Earned: %s", fare), payload, now),
	}
}

// BuildTripCancelled always notifies the passenger, and the driver only when
// one had already been assigned.
func BuildTripCancelled(e domain.TripCancelled, payload json.RawMessage, now time.Time) []domain.Notification {
	reason := e.Reason
	if reason == "" {
		reason = defaultReason
	}
	message := fmt.Sprintf("Trip was cancelled by %s. Reason: %s", e.CancelledBy, reason)

	out := []domain.Notification{
		newNotification(e.PassengerID, domain.NotificationTripCancelled, "Trip Cancelled", message, payload, now),
	}
	if e.DriverID != "" {
		out = append(out, newNotification(e.DriverID, domain.NotificationTripCancelled, "Trip Cancelled", message, payload, now))
	}

	return out
}

func BuildPaymentSuccess(e domain.PaymentSuccess, payload json.RawMessage, now time.Time) []domain.Notification {
	return []domain.Notification{
		newNotification(e.PassengerID, domain.NotificationPaymentSuccess, "Payment Successful",
			fmt.Sprintf("Payment of %s %s was successful.", formatNumber(e.Amount), e.Currency),
			payload, now),
	}
}

func newNotification(userID string, typ domain.NotificationType, title, message string, payload json.RawMessage, now time.Time) domain.Notification {
	return domain.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Payload:   payload,
		CreatedAt: now,
	}
}

// formatNumber renders the shortest decimal form: 50000 -> "50000", 12.5 -> "12.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
