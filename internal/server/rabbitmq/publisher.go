package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bustrack/internal/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends fanout messages through the shared Client. It satisfies
// the tracking service's FanoutPublisher port.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishBusLocation(ctx context.Context, msg contracts.BusLocationMessage) error {
	return p.publishJSON(ctx, contracts.ExchangeBusLocationFanout, msg)
}

func (p *Publisher) PublishTripEvent(ctx context.Context, msg contracts.TripEventMessage) error {
	return p.publishJSON(ctx, contracts.ExchangeTripEvents, msg)
}

func (p *Publisher) publishJSON(ctx context.Context, exchange string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.client.publish(ctx, exchange, body)
}

// publish sends one persistent JSON message and waits for the broker's
// confirm so lost messages surface as errors instead of silence.
func (client *Client) publish(ctx context.Context, exchange string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ch.PublishWithContext(pubCtx, exchange, "", false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c := <-confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-pubCtx.Done():
		// keep the confirm stream aligned: consume exactly one confirm
		// even when the caller gets a timeout
		select {
		case c := <-confirms:
			if !c.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(2 * time.Second):
		}
		return pubCtx.Err()
	}

	return nil
}
