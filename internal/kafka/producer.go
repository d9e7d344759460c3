package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/premsagar/subscription-service/pkg/logger"
)

// Топики событий платежного цикла
const (
	TopicSubscriptionActivated = "subscription_activated"
	TopicPaymentFailed         = "payment_failed"
)

// PaymentEvent событие платежного цикла, публикуемое для внешних консьюмеров
type PaymentEvent struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	PlanType       string    `json:"plan_type,omitempty"`
	Amount         string    `json:"amount,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Producer определяет интерфейс публикации событий в Kafka
type Producer interface {
	// PublishPaymentEvent отправляет событие в указанный топик.
	// Ключ сообщения — subscription_id: события одной подписки попадают
	// в одну партицию и сохраняют порядок.
	PublishPaymentEvent(ctx context.Context, topic string, event PaymentEvent) error
	// Close закрывает соединение продюсера
	Close() error
}

// kafkaProducer реализует Producer через segmentio/kafka-go
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishPaymentEvent преобразует событие в JSON и отправляет в топик
func (k *kafkaProducer) PublishPaymentEvent(ctx context.Context, topic string, event PaymentEvent) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		k.log.Errorw("Failed to marshal payment event for Kafka", "error", err, "orderID", event.OrderID, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.SubscriptionID),
		Value: messageValue,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "orderID", event.OrderID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "orderID", event.OrderID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published payment event to Kafka", "topic", topic, "orderID", event.OrderID)
	return nil
}

// Close закрывает Kafka Writer
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}

// NoOpProducer заглушка на случай, когда брокеры не сконфигурированы:
// публикация событий не критична для основного платежного флоу
type NoOpProducer struct{}

// PublishPaymentEvent ничего не делает
func (NoOpProducer) PublishPaymentEvent(ctx context.Context, topic string, event PaymentEvent) error {
	return nil
}

// Close ничего не делает
func (NoOpProducer) Close() error { return nil }
