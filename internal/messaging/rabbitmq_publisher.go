package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ GameEventPublisher = (*RabbitMQGameEventPublisher)(nil)

// RabbitMQGameEventPublisher publishes game events to a durable topic
// exchange, routed by event type.
type RabbitMQGameEventPublisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
}

// NewRabbitMQGameEventPublisher declares the exchange and returns a ready
// publisher. The connection is assumed stable; reconnect handling belongs to
// the caller that owns it.
func NewRabbitMQGameEventPublisher(conn *amqp091.Connection, exchange string) (*RabbitMQGameEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open a channel")
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Durable topic exchange so consumers can bind per event type and
	// the exchange survives a broker restart.
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
		_ = ch.Close()
		log.Error().Err(err).Str("exchange", exchange).Msg("Failed to declare exchange")
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("Game event exchange declared successfully")

	return &RabbitMQGameEventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishGameEvent publishes one event using its type as the routing key.
func (p *RabbitMQGameEventPublisher) PublishGameEvent(ctx context.Context, event GameEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Failed to marshal game event")
		return fmt.Errorf("failed to marshal game event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Failed to publish game event")
		return fmt.Errorf("failed to publish game event: %w", err)
	}

	log.Debug().Str("type", string(event.Type)).Str("campaignID", event.CampaignID).Msg("Game event published")
	return nil
}

// Close closes the RabbitMQ channel.
func (p *RabbitMQGameEventPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
