package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dejobratic/orderflow/internal/orders/ports"
)

const (
	// TopicOrderPlaced carries one message per committed order, keyed by order id.
	TopicOrderPlaced = "orders.placed"

	// EventOrderPlaced is sent as the event_type header.
	EventOrderPlaced = "order.placed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends order events to Kafka.
type Publisher struct {
	writer messageWriter
	topic  string
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher creates a publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string, writeTimeout time.Duration) *Publisher {
	if topic == "" {
		topic = TopicOrderPlaced
	}
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			WriteTimeout: writeTimeout,
		},
		topic: topic,
	}
}

func newPublisherWithWriter(writer messageWriter, topic string) *Publisher {
	return &Publisher{writer: writer, topic: topic}
}

// Topic reports the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, event ports.OrderPlaced) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order placed event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order placed event: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the connection.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
