package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	// QueueSigner receives change calls for the wallet signer service.
	QueueSigner QueueName = "near_calls"
	// QueueStatus receives send run notifications.
	QueueStatus QueueName = "multisender_status"
)

var ErrNotConnected = errors.New("connection is not open yet")

type WorkerFunc func(context.Context, *amqp.Connection) error

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

type Queue struct {
	config  *Config
	conn    *amqp.Connection
	workers []WorkerFunc
	mu      sync.Mutex
	log     *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("Starting the queue manager.")
	defer q.log.Info("Stopping the queue manager.")

	return q.reconnectLoop(ctx)
}

// RegisterWorker stores a worker that will be invoked every time a connection
// is (re)created.
func (q *Queue) RegisterWorker(w WorkerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.workers = append(q.workers, w)
}

// DeclareQueues returns a worker declaring durable queues on every new
// connection.
func (q *Queue) DeclareQueues(names ...QueueName) WorkerFunc {
	return func(ctx context.Context, conn *amqp.Connection) error {
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("couldn't open channel: %w", err)
		}
		defer ch.Close()

		for _, name := range names {
			_, err = ch.QueueDeclare(string(name), true, false, false, false, nil)
			if err != nil {
				q.log.Error("couldn't declare queue", "queue", name, "error", err)
				return err
			}
		}

		q.log.Debug("Queues declared", "queues", names)

		return nil
	}
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	q.log.Debug("started reconnect loop.")
	defer q.log.Debug("reconnect loop exited.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		q.log.Info("connecting to Rabbit MQ...")
		conn, cancel, err := q.connect(ctx)
		if err != nil {
			q.log.Error("connection to Rabbit MQ failed", "error", err)
			if err := q.wait(ctx); err != nil {
				return err
			}
			continue
		}

		q.log.Info("connected to Rabbit MQ...")

		connErrors := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			cancel()
			q.close()
			return ctx.Err()
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		cancel()
		q.close()

		if err := q.wait(ctx); err != nil {
			return err
		}
	}
}

func (q *Queue) connect(ctx context.Context) (*amqp.Connection, context.CancelFunc, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, nil, err
	}

	workerCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.conn = conn
	workers := append([]WorkerFunc{}, q.workers...)
	q.mu.Unlock()

	for _, w := range workers {
		go func() {
			if err := w(workerCtx, conn); err != nil {
				q.log.Error("queue worker failed", "error", err)
			}
		}()
	}

	return conn, cancel, nil
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		_ = q.conn.Close()
	}
	q.conn = nil
}

func (q *Queue) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(q.config.ReconnectInterval):
		return nil
	}
}

func (q *Queue) channel() (*amqp.Channel, error) {
	q.mu.Lock()
	conn := q.conn
	q.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("couldn't open channel: %w", err)
	}

	return ch, nil
}

// Ping reports whether the broker connection is open.
func (q *Queue) Ping(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func (q *Queue) Publish(queueName QueueName, message []byte) error {
	ch, err := q.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.Publish(
		"",                // exchange, empty means default (direct to queue)
		string(queueName), // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("Failed to publish", "queue", queueName, "error", err)
		return err
	}

	return nil
}

// Call publishes message to queueName and waits for the reply carrying the
// same correlation id. Every call uses its own exclusive reply queue.
func (q *Queue) Call(ctx context.Context, queueName QueueName, message []byte) ([]byte, error) {
	ch, err := q.channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't consume reply queue: %w", err)
	}

	correlationID := uuid.NewString()

	err = ch.PublishWithContext(ctx, "", string(queueName), false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			ReplyTo:       reply.Name,
			Body:          message,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't publish call: %w", err)
	}

	q.log.Debug("Waiting for reply", "queue", queueName, "correlation_id", correlationID)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil, fmt.Errorf("reply channel closed before the reply arrived")
			}
			if d.CorrelationId != correlationID {
				q.log.Warn("dropping unexpected reply", "correlation_id", d.CorrelationId)
				continue
			}
			return d.Body, nil
		}
	}
}
