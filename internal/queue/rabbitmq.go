package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueuePrefix names the queues and exchanges unless overridden
	DefaultQueuePrefix = "document_generation"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"
)

// topology is the set of broker objects a queue prefix expands to
type topology struct {
	jobs     string
	dlq      string
	exchange string
	delayed  string
}

func newTopology(prefix string) topology {
	return topology{
		jobs:     prefix + "_jobs",
		dlq:      prefix + "_jobs_dlq",
		exchange: prefix + "_exchange",
		delayed:  prefix + "_delayed",
	}
}

type binding struct {
	queue, key, exchange string
}

// bindings lists the routes messages take: fresh and retried jobs into the
// jobs queue, rejected ones into the dead letter queue.
func (t topology) bindings(delayed bool) []binding {
	b := []binding{
		{queue: t.dlq, key: dlqRoutingKey, exchange: t.exchange},
		{queue: t.jobs, key: jobsRoutingKey, exchange: t.exchange},
	}
	if delayed {
		b = append(b, binding{queue: t.jobs, key: jobsRoutingKey, exchange: t.delayed})
	}
	return b
}

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn               *amqp.Connection
	channel            *amqp.Channel
	publishMu          sync.Mutex // amqp channels are not safe for concurrent publishing
	names              topology
	hasDelayedExchange bool
	logger             *zap.Logger
}

// RabbitMQOption configures a RabbitMQQueue
type RabbitMQOption func(*RabbitMQQueue)

// WithQueuePrefix renames every queue and exchange; server and worker must agree
func WithQueuePrefix(prefix string) RabbitMQOption {
	return func(q *RabbitMQQueue) {
		if prefix != "" {
			q.names = newTopology(prefix)
		}
	}
}

// NewRabbitMQQueue connects and declares the queue topology
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger, opts ...RabbitMQOption) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &RabbitMQQueue{
		names:  newTopology(DefaultQueuePrefix),
		logger: logger,
	}
	for _, opt := range opts {
		opt(q)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	q.conn = conn

	if q.channel, err = conn.Channel(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := q.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	logger.Debug("rabbitmq_topology_declared",
		zap.String("queue", q.names.jobs),
		zap.String("dlq", q.names.dlq),
		zap.Bool("delayed_exchange", q.hasDelayedExchange))
	return q, nil
}

func (q *RabbitMQQueue) setup() error {
	// delayed retries need the rabbitmq_delayed_message_exchange plugin
	err := q.channel.ExchangeDeclare(q.names.delayed, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"})
	if err != nil {
		// a failed declare closes the channel
		if q.channel.IsClosed() {
			if q.channel, err = q.conn.Channel(); err != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", err)
			}
		}
		q.logger.Warn("delayed_exchange_unavailable", zap.String("exchange", q.names.delayed))
	} else {
		q.hasDelayedExchange = true
	}

	if err := q.channel.ExchangeDeclare(q.names.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", q.names.exchange, err)
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{name: q.names.dlq},
		{name: q.names.jobs, args: amqp.Table{
			"x-dead-letter-exchange":    q.names.exchange,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}},
	}
	for _, qu := range queues {
		if _, err := q.channel.QueueDeclare(qu.name, true, false, false, false, qu.args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", qu.name, err)
		}
	}

	for _, b := range q.names.bindings(q.hasDelayedExchange) {
		if err := q.channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	publishing, exchange, err := q.publishing(job)
	if err != nil {
		return err
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err = q.channel.PublishWithContext(
		ctx,
		exchange,
		jobsRoutingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

func (q *RabbitMQQueue) publishing(job *Job) (amqp.Publishing, string, error) {
	if err := job.Validate(); err != nil {
		return amqp.Publishing{}, "", err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, "", fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}

	if job.NotAfter != nil {
		if ttl := time.Until(*job.NotAfter); ttl > 0 {
			publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	exchange := q.names.exchange
	if job.NotBefore != nil && q.hasDelayedExchange {
		if delay := time.Until(*job.NotBefore); delay > 0 {
			exchange = q.names.delayed
			publishing.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
		}
	}
	return publishing, exchange, nil
}

// Consume returns a channel of messages from the queue using async delivery
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	if prefetchCount <= 0 {
		prefetchCount = 1
	}

	// consumers get their own channel
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	// manual acks; the worker settles every message itself
	deliveries, err := consumeCh.Consume(q.names.jobs, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() {
			_ = consumeCh.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				msg, err := decodeDelivery(delivery.Body, delivery)
				if err != nil {
					// undecodable messages go to the DLQ
					_ = delivery.Nack(false, false)
					select {
					case errChan <- err:
					default:
					}
					continue
				}
				if msg.Job.IsExpired() {
					_ = delivery.Nack(false, false)
					continue
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

func decodeDelivery(body []byte, ack acknowledger) (*Message, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &Message{Job: &job, delivery: ack}, nil
}

// HealthCheck verifies the connection and publishing channel are open
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
