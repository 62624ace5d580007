package contracts

// RoutingKey identifies the type of an event published to the trip exchange.
type RoutingKey string

// Routing keys the notification service understands.
const (
	EventTripAssigned   RoutingKey = "trip.assigned"
	EventTripStarted    RoutingKey = "trip.started"
	EventTripCompleted  RoutingKey = "trip.completed"
	EventTripCancelled  RoutingKey = "trip.cancelled"
	EventPaymentSuccess RoutingKey = "payment.success"
)

// DeadLetterCatchAll binds the dead-letter queue to every key on the DLX.
const DeadLetterCatchAll = "#"

// DefaultRoutingKeys is the binding set used when none is configured.
func DefaultRoutingKeys() []string {
	return []string{
		string(EventTripAssigned),
		string(EventTripStarted),
		string(EventTripCompleted),
		string(EventTripCancelled),
		string(EventPaymentSuccess),
	}
}

func (k RoutingKey) String() string {
	return string(k)
}
