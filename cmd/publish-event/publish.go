package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/se360/notification-service/internal/infrastructure/contracts"
	"github.com/se360/notification-service/internal/infrastructure/events"
	"github.com/se360/notification-service/internal/infrastructure/logging"
	"github.com/se360/notification-service/internal/infrastructure/messaging"
	"github.com/spf13/cobra"
)

const publishTimeout = 15 * time.Second

func defaultTopology() messaging.Topology {
	return messaging.Topology{
		DeadLetterExchange:   "trip_events_dlx",
		Queue:                "notification_queue",
		DeadLetterQueue:      "notification_queue.dlq",
		DeadLetterRoutingKey: "dead",
		RoutingKeys:          contracts.DefaultRoutingKeys(),
	}
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-event <routing-key> <passenger-id>",
		Short: "Publish a sample trip event addressed to a passenger",
		Long: `publish-event sends a sample payload for one of the trip routing keys.
The queue topology is declared first, so the event is kept even if the
notification service is not running yet.`,
		Args:         cobra.ExactArgs(2),
		RunE:         runPublish,
		SilenceUsage: true,
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
	key := contracts.RoutingKey(args[0])
	if !slices.Contains(contracts.DefaultRoutingKeys(), key.String()) {
		return fmt.Errorf("unknown routing key %q (see publish-event keys)", key)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
	defer cancel()

	topology.Exchange = exchange
	rabbitmq := messaging.NewRabbitMQ(messaging.Options{
		URI:            uri,
		Topology:       topology,
		ReconnectDelay: time.Second,
		Logger:         logging.NewNop(),
	})
	defer rabbitmq.Close()

	publisher := events.NewTripEventPublisher(messaging.NewPublisher(rabbitmq, exchange))
	payload, err := publisher.Publish(ctx, key, args[1])
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n%s\n", key, exchange, out)
	return nil
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the routing keys the notification service consumes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, key := range contracts.DefaultRoutingKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
		},
	}
}
