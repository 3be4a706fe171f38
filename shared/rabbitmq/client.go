package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the part of *amqp.Channel the client uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitmqClient struct {
	//conn is a tcp connection to rabbitmq server, nil for injected channels
	conn   *amqp.Connection
	chn    Channel
	queue  string
	logger *zap.Logger
}

// NewClient dials url, opens a channel and declares queue.
func NewClient(url, queue string, logger *zap.Logger) (*RabbitmqClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	//Open a channel. This open a logical session inside the connection.
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	c, err := NewClientWithChannel(chn, queue, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// NewClientWithChannel wraps an already open channel. Tests inject a fake here.
func NewClientWithChannel(chn Channel, queue string, logger *zap.Logger) (*RabbitmqClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RabbitmqClient{chn: chn, queue: queue, logger: logger.Named("rabbitmq")}
	if err := c.CreateQueue(queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return c, nil
}

// close cleans up
func (r *RabbitmqClient) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// CreateQueue prepares a durable queue to hold messages
func (r *RabbitmqClient) CreateQueue(queueName string) error {
	_, err := r.chn.QueueDeclare(
		queueName, //name of queue
		true,      //durable
		false,     //delete when unused
		false,     //exclusive
		false,     //no-wait
		nil,       //arguments
	)
	return err
}

// Publish JSON encodes value and sends it to the client's queue.
// key travels as the message id so consumers can deduplicate.
func (r *RabbitmqClient) Publish(ctx context.Context, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal rabbitmq body: %w", err)
	}
	err = r.chn.PublishWithContext(
		ctx,
		"",      //exchange
		r.queue, //routing key (queue name)
		false,   //mandatory
		false,   //immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // make message persistent
			MessageId:    key,
			Body:         body,
		},
	)
	if err != nil {
		r.logger.Error("rabbitmq publish error", zap.String("queue", r.queue), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
