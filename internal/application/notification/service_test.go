package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	userID  string
	event   string
	payload any
}

type fakeSender struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []sentMessage
}

func (f *fakeSender) SendToUser(userID, event string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[userID] {
		return false
	}
	f.sent = append(f.sent, sentMessage{userID: userID, event: event, payload: payload})
	return true
}

func TestService_Dispatch(t *testing.T) {
	sender := &fakeSender{online: map[string]bool{"P1": true}}
	svc := NewService(sender, logging.NewNop())

	notifications := BuildTripCompleted(domain.TripCompleted{PassengerID: "P1", DriverID: "D1", Fare: 10}, nil, fixedNow)
	svc.Dispatch(context.Background(), notifications)

	// D1 is offline and silently dropped.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "P1", sender.sent[0].userID)
	assert.Equal(t, EventName, sender.sent[0].event)

	n, ok := sender.sent[0].payload.(domain.Notification)
	require.True(t, ok)
	assert.Equal(t, domain.NotificationTripCompleted, n.Type)
}

func TestService_Dispatch_AllOffline(t *testing.T) {
	sender := &fakeSender{online: map[string]bool{}}
	svc := NewService(sender, logging.NewNop())

	assert.NotPanics(t, func() {
		svc.Dispatch(context.Background(), BuildTripStarted(domain.TripStarted{PassengerID: "P1"}, nil, fixedNow))
	})
	assert.Empty(t, sender.sent)
}
