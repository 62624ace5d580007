package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/se360/notification-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type expected struct {
	userID  string
	typ     domain.NotificationType
	title   string
	message string
}

func assertNotifications(t *testing.T, want []expected, got []domain.Notification, payload json.RawMessage) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.userID, got[i].UserID, "recipient %d", i)
		assert.Equal(t, w.typ, got[i].Type, "type %d", i)
		assert.Equal(t, w.title, got[i].Title, "title %d", i)
		assert.Equal(t, w.message, got[i].Message, "message %d", i)
		assert.Equal(t, fixedNow, got[i].CreatedAt)
		assert.JSONEq(t, string(payload), string(got[i].Payload))
	}
}

func TestBuilders(t *testing.T) {
	payload := json.RawMessage(`{"tripId":"T1"}`)

	tests := []struct {
		name  string
		build func() []domain.Notification
		want  []expected
	}{
		{
			name: "trip.assigned",
			build: func() []domain.Notification {
				return BuildTripAssigned(domain.TripAssigned{
					TripID: "T1", PassengerID: "P1", DriverID: "D1",
					DriverName: "John Driver", VehiclePlate: "51A-12345", ETAMinutes: 5,
				}, payload, fixedNow)
			},
			want: []expected{{"P1", domain.NotificationTripAssigned, "Driver Assigned",
				"Driver John Driver (51A-12345) is on the way. ETA: 5 mins."}},
		},
		{
			name: "trip.assigned without plate",
			build: func() []domain.Notification {
				return BuildTripAssigned(domain.TripAssigned{
					PassengerID: "P1", DriverName: "John Driver", ETAMinutes: 2.5,
				}, payload, fixedNow)
			},
			want: []expected{{"P1", domain.NotificationTripAssigned, "Driver Assigned",
				"Driver John Driver () is on the way. ETA: 2.5 mins."}},
		},
		{
			name: "trip.started",
			build: func() []domain.Notification {
				return BuildTripStarted(domain.TripStarted{PassengerID: "P1", DriverID: "D1"}, payload, fixedNow)
			},
			want: []expected{{"P1", domain.NotificationTripStarted, "Trip Started", "Your trip has started."}},
		},
		{
			name: "trip.completed",
			build: func() []domain.Notification {
				return BuildTripCompleted(domain.TripCompleted{PassengerID: "P1", DriverID: "D1", Fare: 50000}, payload, fixedNow)
			},
			want: []expected{
				{"P1", domain.NotificationTripCompleted, "Trip Completed", "Your trip has been completed. Fare: 50000"},
				{"D1", domain.NotificationTripCompleted, "Trip Completed", "Trip completed. Earned: 50000"},
			},
		},
		{
			name: "trip.cancelled with driver and no reason",
			build: func() []domain.Notification {
				return BuildTripCancelled(domain.TripCancelled{
					PassengerID: "P1", DriverID: "D1", CancelledBy: domain.CancelledByDriver,
				}, payload, fixedNow)
			},
			want: []expected{
				{"P1", domain.NotificationTripCancelled, "Trip Cancelled", "Trip was cancelled by DRIVER. Reason: N/A"},
				{"D1", domain.NotificationTripCancelled, "Trip Cancelled", "Trip was cancelled by DRIVER. Reason: N/A"},
			},
		},
		{
			name: "trip.cancelled without driver",
			build: func() []domain.Notification {
				return BuildTripCancelled(domain.TripCancelled{
					PassengerID: "P1", CancelledBy: domain.CancelledByPassenger, Reason: "changed plans",
				}, payload, fixedNow)
			},
			want: []expected{
				{"P1", domain.NotificationTripCancelled, "Trip Cancelled", "Trip was cancelled by PASSENGER. Reason: changed plans"},
			},
		},
		{
			name: "payment.success",
			build: func() []domain.Notification {
				return BuildPaymentSuccess(domain.PaymentSuccess{PassengerID: "P1", Amount: 50000, Currency: "VND"}, payload, fixedNow)
			},
			want: []expected{{"P1", domain.NotificationPaymentSuccess, "Payment Successful", "Payment of 50000 VND was successful."}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNotifications(t, tt.want, tt.build(), payload)
		})
	}
}

func TestBuildTripCompleted_SameFareDifferentText(t *testing.T) {
	got := BuildTripCompleted(domain.TripCompleted{PassengerID: "P1", DriverID: "D1", Fare: 50000}, nil, fixedNow)

	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].Message, got[1].Message)
	assert.Contains(t, got[0].Message, "50000")
	assert.Contains(t, got[1].Message, "50000")
}

func TestBuilders_AreDeterministic(t *testing.T) {
	e := domain.TripCancelled{PassengerID: "P1", DriverID: "D1", CancelledBy: domain.CancelledByDriver}
	assert.Equal(t, BuildTripCancelled(e, nil, fixedNow), BuildTripCancelled(e, nil, fixedNow))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "50000", formatNumber(50000))
	assert.Equal(t, "12.5", formatNumber(12.5))
	assert.Equal(t, "0", formatNumber(0))
}
