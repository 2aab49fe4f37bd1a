package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/reservations"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/IBM/sarama"
)

// MessageType identifies the lifecycle event carried by a Kafka message.
type MessageType string

const (
	TypeReservationCreated   MessageType = "reservation.created"
	TypeReservationPaid      MessageType = "reservation.paid"
	TypeReservationCancelled MessageType = "reservation.cancelled"
	TypeEventsFinished       MessageType = "events.finished"
)

// Message is the JSON envelope published for every lifecycle event.
type Message struct {
	Type          MessageType `json:"type"`
	ReservationID string      `json:"reservation_id,omitempty"`
	CustomerID    string      `json:"customer_id,omitempty"`
	EventID       string      `json:"event_id,omitempty"`
	Total         float64     `json:"total,omitempty"`
	Finished      int         `json:"finished,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// ProducerConfig contains configuration for the Kafka producer
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	RetryMax int
	Timeout  time.Duration
}

// DefaultProducerConfig returns a default producer configuration
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:  []string{"localhost:9092"},
		Topic:    "reservation-events",
		RetryMax: 3,
		Timeout:  10 * time.Second,
	}
}

// Producer publishes reservation lifecycle events to Kafka. Publishing is
// best-effort: failures are logged and swallowed so the core operation that
// triggered the message never fails because the broker is down.
type Producer struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
	log      *logger.Logger
}

// NewProducer creates a new Kafka lifecycle event producer
func NewProducer(config *ProducerConfig, log *logger.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		config:   config,
		log:      log,
	}, nil
}

// ReservationCreated implements reservations.Publisher
func (p *Producer) ReservationCreated(ctx context.Context, r *reservations.Reservation) {
	p.publish(ctx, Message{
		Type:          TypeReservationCreated,
		ReservationID: r.ID.String(),
		CustomerID:    r.CustomerID.String(),
		EventID:       r.EventID.String(),
		Total:         r.Total,
		OccurredAt:    time.Now(),
	}, r.ID.String())
}

// ReservationPaid implements reservations.Publisher
func (p *Producer) ReservationPaid(ctx context.Context, r *reservations.Reservation) {
	p.publish(ctx, Message{
		Type:          TypeReservationPaid,
		ReservationID: r.ID.String(),
		CustomerID:    r.CustomerID.String(),
		EventID:       r.EventID.String(),
		Total:         r.Total,
		OccurredAt:    time.Now(),
	}, r.ID.String())
}

// ReservationCancelled implements reservations.Publisher
func (p *Producer) ReservationCancelled(ctx context.Context, r *reservations.Reservation) {
	p.publish(ctx, Message{
		Type:          TypeReservationCancelled,
		ReservationID: r.ID.String(),
		CustomerID:    r.CustomerID.String(),
		EventID:       r.EventID.String(),
		OccurredAt:    time.Now(),
	}, r.ID.String())
}

// EventsFinished announces a lifecycle sweep that closed one or more events.
func (p *Producer) EventsFinished(ctx context.Context, finished int) {
	p.publish(ctx, Message{
		Type:       TypeEventsFinished,
		Finished:   finished,
		OccurredAt: time.Now(),
	}, string(TypeEventsFinished))
}

func (p *Producer) publish(ctx context.Context, msg Message, key string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.ErrorWithContext(ctx, "failed to marshal lifecycle message", err, map[string]interface{}{
			"type": string(msg.Type),
		})
		return
	}

	message := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(msg.Type)},
			{Key: []byte("occurred_at"), Value: []byte(msg.OccurredAt.Format(time.RFC3339))},
		},
	}

	if _, _, err := p.producer.SendMessage(message); err != nil {
		p.log.ErrorWithContext(ctx, "failed to publish lifecycle message", err, map[string]interface{}{
			"type":  string(msg.Type),
			"topic": p.config.Topic,
		})
	}
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	return nil
}
