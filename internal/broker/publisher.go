// Package broker publishes persisted incidents to an AMQP exchange.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streadway/amqp"

	"horse.fit/tariqi/internal/globaltime"
	"horse.fit/tariqi/internal/incident"
)

// IncidentMessage is the JSON body of a published incident.
type IncidentMessage struct {
	incident.Verified
	CreatedAt time.Time `json:"created_at"`
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
}

// NewPublisher dials amqpURL and declares a durable direct exchange.
func NewPublisher(ctx context.Context, amqpURL, exchange, routingKey string) (*Publisher, error) {
	if strings.TrimSpace(amqpURL) == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, fmt.Errorf("amqp exchange is required")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	select {
	case <-ctx.Done():
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("create publisher: %w", ctx.Err())
	default:
	}

	return &Publisher{
		conn:       conn,
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishIncident sends one incident as a persistent JSON message.
func (p *Publisher) PublishIncident(ctx context.Context, verified incident.Verified, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(IncidentMessage{Verified: verified, CreatedAt: createdAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal incident %s: %w", verified.ID, err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    verified.ID,
		Timestamp:    globaltime.UTC(),
	}
	if err := p.channel.Publish(p.exchange, p.routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("publish incident %s: %w", verified.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
	}
	return err
}
