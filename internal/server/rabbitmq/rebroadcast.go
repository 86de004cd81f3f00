package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"bustrack/internal/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Rebroadcaster receives fanout messages produced by sibling instances.
type Rebroadcaster interface {
	RebroadcastLocation(msg contracts.BusLocationMessage)
	RebroadcastTripEvent(msg contracts.TripEventMessage)
}

// RunRebroadcast consumes both fanout exchanges until ctx is cancelled,
// reconnecting the consumers after transient failures.
func RunRebroadcast(ctx context.Context, client *Client, sink Rebroadcaster, logger *slog.Logger) {
	go consumeLoop(ctx, client, contracts.ExchangeBusLocationFanout, "bustrack-locations", logger,
		func(_ context.Context, d amqp.Delivery) error {
			var msg contracts.BusLocationMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				return err
			}
			sink.RebroadcastLocation(msg)
			return nil
		})
	go consumeLoop(ctx, client, contracts.ExchangeTripEvents, "bustrack-trip-events", logger,
		func(_ context.Context, d amqp.Delivery) error {
			var msg contracts.TripEventMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				return err
			}
			sink.RebroadcastTripEvent(msg)
			return nil
		})
}

func consumeLoop(
	ctx context.Context,
	client *Client,
	exchange, tag string,
	logger *slog.Logger,
	handler func(context.Context, amqp.Delivery) error,
) {
	for {
		err := client.ConsumeFanout(ctx, exchange, tag, 64, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("fanout_consumer_stopped", "exchange", exchange, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}
