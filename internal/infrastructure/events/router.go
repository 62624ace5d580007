package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/se360/notification-service/internal/application/notification"
	"github.com/se360/notification-service/internal/domain"
	"github.com/se360/notification-service/internal/infrastructure/contracts"
)

// ErrUnknownRoutingKey marks a message whose key has no handler. Such
// messages are acknowledged and dropped rather than dead-lettered.
var ErrUnknownRoutingKey = errors.New("unknown routing key")

// Dispatcher delivers built notifications to their recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, notifications []domain.Notification)
}

type HandlerFunc func(ctx context.Context, body []byte) error

// Router maps routing keys to handlers. The table is fixed at construction.
type Router struct {
	handlers map[contracts.RoutingKey]HandlerFunc
}

func NewRouter(dispatcher Dispatcher) *Router {
	return newRouter(dispatcher, time.Now)
}

func newRouter(dispatcher Dispatcher, now func() time.Time) *Router {
	v := validator.New(validator.WithRequiredStructEnabled())

	return &Router{
		handlers: map[contracts.RoutingKey]HandlerFunc{
			contracts.EventTripAssigned:   handle(v, dispatcher, now, notification.BuildTripAssigned),
			contracts.EventTripStarted:    handle(v, dispatcher, now, notification.BuildTripStarted),
			contracts.EventTripCompleted:  handle(v, dispatcher, now, notification.BuildTripCompleted),
			contracts.EventTripCancelled:  handle(v, dispatcher, now, notification.BuildTripCancelled),
			contracts.EventPaymentSuccess: handle(v, dispatcher, now, notification.BuildPaymentSuccess),
		},
	}
}

// Route runs the handler for key. A panicking handler is reported as an
// error so the message is dead-lettered instead of killing the worker.
func (r *Router) Route(ctx context.Context, key string, body []byte) (err error) {
	h, ok := r.handlers[contracts.RoutingKey(key)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoutingKey, key)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler for %s panicked: %v", key, rec)
		}
	}()

	return h(ctx, body)
}

// Handles reports whether key is in the dispatch table.
func (r *Router) Handles(key string) bool {
	_, ok := r.handlers[contracts.RoutingKey(key)]
	return ok
}

func handle[E any](
	v *validator.Validate,
	dispatcher Dispatcher,
	now func() time.Time,
	build func(E, json.RawMessage, time.Time) []domain.Notification,
) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var event E
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to decode payload: %w", err)
		}

		if err := v.Struct(event); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}

		dispatcher.Dispatch(ctx, build(event, json.RawMessage(body), now()))
		return nil
	}
}
