package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/contracts"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
)

// SampleDriverID is the driver used by sample payloads that need one.
const SampleDriverID = "11111111-1111-1111-1111-111111111111"

type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

var _ MessagePublisher = (*messaging.Publisher)(nil)

// TripEventPublisher emits sample trip events addressed to a passenger. It
// stands in for the upstream producers during local development.
type TripEventPublisher struct {
	publisher MessagePublisher
}

func NewTripEventPublisher(publisher MessagePublisher) *TripEventPublisher {
	return &TripEventPublisher{
		publisher: publisher,
	}
}

// Publish sends the sample payload for key and returns what was sent.
func (p *TripEventPublisher) Publish(ctx context.Context, key contracts.RoutingKey, passengerID string) (any, error) {
	payload, err := SamplePayload(key, passengerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", key, err)
	}

	if err := p.publisher.Publish(ctx, key.String(), body); err != nil {
		return nil, err
	}

	return payload, nil
}

func SamplePayload(key contracts.RoutingKey, passengerID string, now time.Time) (any, error) {
	if passengerID == "" {
		return nil, fmt.Errorf("passenger id is required")
	}
	ts := now.Format(time.RFC3339)

	switch key {
	case contracts.EventTripAssigned:
		return domain.TripAssigned{
			TripID:       uuid.NewString(),
			PassengerID:  passengerID,
			DriverID:     SampleDriverID,
			DriverName:   "John Driver",
			VehiclePlate: "51A-123.45",
			ETAMinutes:   5,
		}, nil
	case contracts.EventTripStarted:
		return domain.TripStarted{
			TripID:        uuid.NewString(),
			PassengerID:   passengerID,
			DriverID:      SampleDriverID,
			PickupAddress: "123 Main St",
			StartTime:     ts,
		}, nil
	case contracts.EventTripCompleted:
		return domain.TripCompleted{
			TripID:         uuid.NewString(),
			PassengerID:    passengerID,
			DriverID:       SampleDriverID,
			DropoffAddress: "456 Market St",
			Fare:           50000,
			EndTime:        ts,
			DistanceKm:     7.4,
		}, nil
	case contracts.EventTripCancelled:
		return domain.TripCancelled{
			TripID:      uuid.NewString(),
			PassengerID: passengerID,
			CancelledBy: domain.CancelledByPassenger,
			CancelledAt: ts,
		}, nil
	case contracts.EventPaymentSuccess:
		return domain.PaymentSuccess{
			PaymentID:     "pay-" + uuid.NewString()[:8],
			TripID:        uuid.NewString(),
			PassengerID:   passengerID,
			Amount:        50000,
			Currency:      "VND",
			PaymentMethod: "CARD",
			Timestamp:     ts,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoutingKey, key)
	}
}
