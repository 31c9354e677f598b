package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// queue for committed ledger records
	TransactionQueue = "ledger.transactions"
)

// Publisher announces committed ledger records.
type Publisher interface {
	PublishTransaction(ctx context.Context, tx *models.Transaction) error
}

// Handler processes one consumed record. A returned error requeues the delivery.
type Handler func(ctx context.Context, tx *models.Transaction) error

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *zap.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

var _ Publisher = (*RabbitMQ)(nil)

func NewRabbitMQ(uri string, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		TransactionQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
		logger:  logger.Named("rabbitmq"),
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// publishes a committed record to the queue
func (r *RabbitMQ) PublishTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.Publish(
		"",               // exchange
		TransactionQueue, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    tx.ID,
			Type:         string(tx.Type),
			Timestamp:    tx.CreatedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume hands each delivery to handler until ctx is done or the channel closes.
// Deliveries are acknowledged only after handler succeeds.
func (r *RabbitMQ) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if prefetch > 0 {
		if err := r.channel.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set qos: %w", err)
		}
	}

	msgs, err := r.channel.Consume(
		TransactionQueue, // queue
		"",               // consumer
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			r.handleDelivery(ctx, msg, handler)
		}
	}
}

func (r *RabbitMQ) handleDelivery(ctx context.Context, msg amqp.Delivery, handler Handler) {
	var tx models.Transaction
	if err := json.Unmarshal(msg.Body, &tx); err != nil {
		r.logger.Error("dropping malformed message", zap.String("message_id", msg.MessageId), zap.Error(err))
		_ = msg.Reject(false) // Don't requeue
		return
	}

	if err := handler(ctx, &tx); err != nil {
		r.logger.Warn("handler failed, requeueing",
			zap.String("transaction_id", tx.ID),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Error(err),
		)
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
