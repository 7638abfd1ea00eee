package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

// LocalHandler receives events directly when the producer runs in mock mode,
// so notifications still fire without a broker.
type LocalHandler func(ctx context.Context, event *models.OrderEvent) error

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	mockMode bool
	local    LocalHandler
	log      *logger.Logger
}

func NewProducer(brokers []string, topic string, mockMode bool, log *logger.Logger) (*Producer, error) {
	if mockMode {
		log.LogKafka("MOCK_MODE", "producer", "Running in mock mode - no actual Kafka connection")
		return &Producer{
			topic:    topic,
			mockMode: true,
			log:      log,
		}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogKafka("CONNECTED", "producer", fmt.Sprintf("Connected to Kafka brokers: %v", brokers))
	return newWithSyncProducer(producer, topic, log), nil
}

func newWithSyncProducer(p sarama.SyncProducer, topic string, log *logger.Logger) *Producer {
	return &Producer{
		producer: p,
		topic:    topic,
		log:      log,
	}
}

// SetLocalHandler installs the in-process delivery used in mock mode.
func (p *Producer) SetLocalHandler(h LocalHandler) {
	p.local = h
}

// PublishOrderEvent sends the event keyed by order id, so all events for one
// order land on the same partition in order.
func (p *Producer) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.mockMode {
		p.log.LogKafka("MOCK_PUBLISH", p.topic, fmt.Sprintf("Mock publishing event: %s for order: %s", event.Type, event.OrderID))
		p.log.LogKafka("MOCK_DATA", p.topic, string(data))
		if p.local != nil {
			return p.local(ctx, event)
		}
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", p.topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.LogKafka("PUBLISHED", p.topic, fmt.Sprintf("Message sent to partition %d at offset %d for order %s", partition, offset, event.OrderID))
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode {
		p.log.LogKafka("MOCK_CLOSE", "producer", "Mock producer closed")
		return nil
	}

	if p.producer != nil {
		p.log.LogKafka("CLOSING", "producer", "Closing Kafka producer connection")
		return p.producer.Close()
	}
	return nil
}
