package domain

// CancelledBy is the role of the party that cancelled a trip.
type CancelledBy string

const (
	CancelledByPassenger CancelledBy = "PASSENGER"
	CancelledByDriver    CancelledBy = "DRIVER"
)

// Event payloads as published by the trip, driver and payment services.
// Field names follow the producers' camelCase wire schema. Timestamps are
// kept as the producer formatted them; nothing here interprets them.

type TripAssigned struct {
	TripID       string  `json:"tripId"`
	PassengerID  string  `json:"passengerId" validate:"required"`
	DriverID     string  `json:"driverId"`
	DriverName   string  `json:"driverName"`
	VehiclePlate string  `json:"vehiclePlate"`
	ETAMinutes   float64 `json:"etaMinutes" validate:"gte=0"`
}

type TripStarted struct {
	TripID        string `json:"tripId"`
	PassengerID   string `json:"passengerId" validate:"required"`
	DriverID      string `json:"driverId"`
	PickupAddress string `json:"pickupAddress"`
	StartTime     string `json:"startTime"`
}

type TripCompleted struct {
	TripID         string  `json:"tripId"`
	PassengerID    string  `json:"passengerId" validate:"required"`
	DriverID       string  `json:"driverId" validate:"required"`
	DropoffAddress string  `json:"dropoffAddress"`
	Fare           float64 `json:"fare" validate:"gte=0"`
	EndTime        string  `json:"endTime"`
	DistanceKm     float64 `json:"distanceKm"`
}

type TripCancelled struct {
	TripID      string      `json:"tripId"`
	PassengerID string      `json:"passengerId" validate:"required"`
	DriverID    string      `json:"driverId"`
	CancelledBy CancelledBy `json:"cancelledBy" validate:"required,oneof=PASSENGER DRIVER"`
	Reason      string      `json:"reason"`
	CancelledAt string      `json:"cancelledAt"`
}

type PaymentSuccess struct {
	PaymentID     string  `json:"paymentId"`
	TripID        string  `json:"tripId"`
	PassengerID   string  `json:"passengerId" validate:"required"`
	Amount        float64 `json:"amount" validate:"gte=0"`
	Currency      string  `json:"currency" validate:"required"`
	PaymentMethod string  `json:"paymentMethod"`
	Timestamp     string  `json:"timestamp"`
}
