package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewOrderEventConsumer(brokers []string, groupID, topic string, log *logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.LogKafka("SUBSCRIBED", topic, fmt.Sprintf("Consumer group %s ready", groupID))
	return &Consumer{
		consumer: consumer,
		topics:   []string{topic},
		log:      log,
	}, nil
}

// ConsumeOrderEvents blocks until ctx is cancelled or the group fails.
func (c *Consumer) ConsumeOrderEvents(ctx context.Context, handler func(context.Context, *models.OrderEvent) error) error {
	consumerHandler := &OrderEventHandler{Handler: handler, Log: c.log}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				c.log.Error("KAFKA", fmt.Sprintf("Error consuming messages: %v", err))
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	c.log.LogKafka("CLOSING", "consumer", "Closing Kafka consumer group")
	return c.consumer.Close()
}

// OrderEventHandler is the sarama.ConsumerGroupHandler behind
// ConsumeOrderEvents. Messages that fail to decode or to handle are logged
// and skipped.
type OrderEventHandler struct {
	Handler func(context.Context, *models.OrderEvent) error
	Log     *logger.Logger
}

func (h *OrderEventHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *OrderEventHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *OrderEventHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.OrderEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", message.Offset, err))
			session.MarkMessage(message, "")
			continue
		}

		h.Log.LogKafka("RECEIVED", message.Topic, fmt.Sprintf("%s for order %s", event.Type, event.OrderID))
		if err := h.Handler(session.Context(), &event); err != nil {
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to handle order event %s: %v", event.OrderID, err))
			continue
		}

		session.MarkMessage(message, "")
	}

	return nil
}
