// Package events publishes learner events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/mind-engage/cms485-trainer/internal/report"
)

const DefaultExchange = "cms485.events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Envelope wraps every published event.
type Envelope struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	LearnerID  string    `json:"learnerId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type Publisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	enabled  bool
}

// NewPublisher connects and declares a durable topic exchange. An empty URI
// returns a disabled publisher.
func NewPublisher(uri, exchange string) (*Publisher, error) {
	if uri == "" {
		log.Println("event publishing disabled: AMQP_URI not configured")
		return &Publisher{}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, enabled: true}, nil
}

func (p *Publisher) Enabled() bool { return p.enabled }

func (p *Publisher) Publish(ctx context.Context, routingKey, learnerID string, data any) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		Type:       routingKey,
		LearnerID:  learnerID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.ch.PublishWithContext(
		pubCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	log.Printf("published event: %s learner=%s", routingKey, learnerID)
	return nil
}

// Post publishes a completion payload under its event name.
func (p *Publisher) Post(ctx context.Context, learnerID string, payload report.Payload) error {
	return p.Publish(ctx, payload.Event, learnerID, payload)
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		log.Printf("close RabbitMQ channel: %v", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
