package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"go.uber.org/zap"
)

// Notification kinds carried in the message "type" field and header
const (
	KindInvoiceGenerated = "invoice.generated"
	KindInvoicesBulk     = "invoice.bulk_generated"
	KindPaymentReceived  = "payment.received"
)

// Message is the JSON value published for each notification. Downstream
// consumers (SMS, email, parent app) look the records up by ID.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	SchoolID   uuid.UUID   `json:"school_id"`
	InvoiceIDs []uuid.UUID `json:"invoice_ids,omitempty"`
	PaymentID  *uuid.UUID  `json:"payment_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// KafkaConfig configures the Kafka notification sink
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaNotifier publishes notifications to a Kafka topic, keyed by school
// so one school's messages stay ordered within a partition
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	now      func() time.Time
}

// NewKafkaNotifier dials the brokers and returns a notifier backed by a
// synchronous producer
func NewKafkaNotifier(cfg KafkaConfig, log *zap.Logger) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka notifier: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka notifier: topic is required")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: connect: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, cfg.Topic, log), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		logger:   log.Named("notification.kafka"),
		now:      time.Now,
	}
}

func (n *KafkaNotifier) NotifyInvoiceGenerated(ctx context.Context, schoolID, invoiceID uuid.UUID) error {
	return n.publish(ctx, Message{
		Type:       KindInvoiceGenerated,
		SchoolID:   schoolID,
		InvoiceIDs: []uuid.UUID{invoiceID},
	})
}

func (n *KafkaNotifier) NotifyPaymentReceived(ctx context.Context, schoolID, paymentID uuid.UUID) error {
	return n.publish(ctx, Message{
		Type:      KindPaymentReceived,
		SchoolID:  schoolID,
		PaymentID: &paymentID,
	})
}

func (n *KafkaNotifier) NotifyBulkInvoices(ctx context.Context, schoolID uuid.UUID, invoiceIDs []uuid.UUID) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	return n.publish(ctx, Message{
		Type:       KindInvoicesBulk,
		SchoolID:   schoolID,
		InvoiceIDs: invoiceIDs,
	})
}

func (n *KafkaNotifier) publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg.ID = uuid.New()
	msg.OccurredAt = n.now().UTC()

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka notifier: marshal %s: %w", msg.Type, err)
	}

	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(msg.SchoolID.String()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(msg.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka notifier: send %s: %w", msg.Type, err)
	}

	n.logger.Debug("Notification published",
		zap.String("type", msg.Type),
		zap.String("school_id", msg.SchoolID.String()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close flushes and closes the producer
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

var _ appfinance.Notifier = (*KafkaNotifier)(nil)
