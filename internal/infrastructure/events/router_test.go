package events

import (
	"context"
	"testing"
	"time"

	"github.com/se360/notification-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)

func newTestRouter(d Dispatcher) *Router {
	return newRouter(d, func() time.Time { return fixedNow })
}

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		body       string
		recipients []string
		wantErr    bool
		unknown    bool
	}{
		{
			name:       "trip assigned",
			key:        "trip.assigned",
			body:       `{"tripId":"T1","passengerId":"P1","driverName":"John","vehiclePlate":"51A","etaMinutes":5}`,
			recipients: []string{"P1"},
		},
		{
			name:       "trip started",
			key:        "trip.started",
			body:       `{"tripId":"T1","passengerId":"P1"}`,
			recipients: []string{"P1"},
		},
		{
			name:       "trip completed notifies both sides",
			key:        "trip.completed",
			body:       `{"passengerId":"P1","driverId":"D1","fare":50000}`,
			recipients: []string{"P1", "D1"},
		},
		{
			name:       "trip cancelled before assignment",
			key:        "trip.cancelled",
			body:       `{"passengerId":"P1","cancelledBy":"PASSENGER"}`,
			recipients: []string{"P1"},
		},
		{
			name:       "payment success",
			key:        "payment.success",
			body:       `{"passengerId":"P1","amount":120.5,"currency":"VND"}`,
			recipients: []string{"P1"},
		},
		{
			name:    "malformed json",
			key:     "trip.started",
			body:    `{"passengerId":`,
			wantErr: true,
		},
		{
			name:    "missing passenger",
			key:     "trip.started",
			body:    `{"tripId":"T1"}`,
			wantErr: true,
		},
		{
			name:    "invalid canceller",
			key:     "trip.cancelled",
			body:    `{"passengerId":"P1","cancelledBy":"ADMIN"}`,
			wantErr: true,
		},
		{
			name:    "completed without driver",
			key:     "trip.completed",
			body:    `{"passengerId":"P1","fare":10}`,
			wantErr: true,
		},
		{
			name:    "unknown key",
			key:     "driver.location",
			body:    `{}`,
			wantErr: true,
			unknown: true,
		},
		{
			name:    "unknown key is rejected before its body is read",
			key:     "driver.location",
			body:    `not json`,
			wantErr: true,
			unknown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			r := newTestRouter(d)

			err := r.Route(context.Background(), tt.key, []byte(tt.body))

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.unknown, errorsIsUnknown(err))
				assert.Empty(t, d.sent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.recipients, d.recipients())
		})
	}
}

func TestRouter_CancelledByDriverScenario(t *testing.T) {
	d := &recordingDispatcher{}
	r := newTestRouter(d)

	err := r.Route(context.Background(), "trip.cancelled",
		[]byte(`{"passengerId":"P1","driverId":"D1","cancelledBy":"DRIVER"}`))

	require.NoError(t, err)
	require.Len(t, d.sent, 2)
	for _, n := range d.sent {
		assert.Equal(t, "Trip Cancelled", n.Title)
		assert.Equal(t, "Trip was cancelled by DRIVER. Reason: N/A", n.Message)
		assert.Equal(t, domain.NotificationTripCancelled, n.Type)
		assert.Equal(t, fixedNow, n.CreatedAt)
	}
	assert.Equal(t, []string{"P1", "D1"}, d.recipients())
}

func TestRouter_AttachesOriginalPayload(t *testing.T) {
	d := &recordingDispatcher{}
	r := newTestRouter(d)
	body := `{"passengerId":"P1","startTime":"2025-05-01T08:30:00Z"}`

	require.NoError(t, r.Route(context.Background(), "trip.started", []byte(body)))

	require.Len(t, d.sent, 1)
	assert.JSONEq(t, body, string(d.sent[0].Payload))
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, []domain.Notification) {
	panic("socket exploded")
}

func TestRouter_RecoversHandlerPanic(t *testing.T) {
	r := newTestRouter(panickingDispatcher{})

	var err error
	assert.NotPanics(t, func() {
		err = r.Route(context.Background(), "trip.started", []byte(`{"passengerId":"P1"}`))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket exploded")
	assert.False(t, errorsIsUnknown(err))
}

func TestRouter_Handles(t *testing.T) {
	r := newTestRouter(&recordingDispatcher{})

	for _, key := range []string{"trip.assigned", "trip.started", "trip.completed", "trip.cancelled", "payment.success"} {
		assert.True(t, r.Handles(key), key)
	}
	assert.False(t, r.Handles("trip.requested"))
}
