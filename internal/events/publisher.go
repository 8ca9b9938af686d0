// Package events publishes payment outcome events for downstream shop
// consumers (mail, fulfilment, bookkeeping) over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/qteco/mall-mollie-bridge/internal/payment"
)

// RabbitPublisher fans payment events out on a durable topic exchange.
// Routing keys are payment.<status>, e.g. payment.paid.
type RabbitPublisher struct {
	conn     *amqp.Connection
	chn      *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := chn.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		chn.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, chn: chn, exchange: exchange}, nil
}

func (p *RabbitPublisher) PaymentEvent(ctx context.Context, e payment.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	key := "payment." + string(e.Status)
	return p.chn.PublishWithContext(
		ctx,
		p.exchange,
		key,   // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.EventID,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	if err := p.chn.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PaymentEvent(ctx context.Context, e payment.Event) error { return nil }
