package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// Options configure a Client.
type Options struct {
	// Exchange receives published messages. Empty means the default
	// exchange, which routes by queue name.
	Exchange string
	// Source tags outgoing messages that carry none.
	Source  string
	Metrics *Metrics
}

// Client owns one broker connection and everything opened on it.
type Client struct {
	conn      Connection
	log       logger.Logger
	metrics   *Metrics
	registry  *SenderRegistry
	publisher *Publisher

	mu        sync.Mutex
	consumers []*consumer
	closed    bool
}

var _ messaging.Broker = (*Client)(nil)

// Dial connects to the broker at url.
func Dial(url string, log logger.Logger, opts Options) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, messaging.ConnectionError("dial", "", err)
	}

	log.Info("Successfully connected to RabbitMQ")
	return NewClient(WrapConnection(conn), log, opts), nil
}

// NewClient builds a client on an existing connection.
func NewClient(conn Connection, log logger.Logger, opts Options) *Client {
	registry := NewSenderRegistry(conn, log, opts.Metrics)
	return &Client{
		conn:      conn,
		log:       log,
		metrics:   opts.Metrics,
		registry:  registry,
		publisher: NewPublisher(registry, opts.Exchange, opts.Source, log, opts.Metrics),
	}
}

func (c *Client) Publish(ctx context.Context, msg *messaging.Message, destination string) error {
	return c.publisher.Publish(ctx, msg, destination)
}

func (c *Client) PublishContent(ctx context.Context, content, destination, msgType string) (*messaging.Message, error) {
	return c.publisher.PublishContent(ctx, content, destination, msgType)
}

// Consume starts a receive loop on destination. The loop runs until the
// returned subscription is stopped, ctx is cancelled or the client closes.
func (c *Client) Consume(ctx context.Context, destination string, handler messaging.Handler) (messaging.Subscription, error) {
	if destination == "" {
		return nil, messaging.ValidationError("consume", destination, "destination must not be empty")
	}
	if handler == nil {
		return nil, messaging.ValidationError("consume", destination, "handler must not be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, messaging.ConnectionError("consume", destination, errConnectionClosed)
	}

	cons := newConsumer(c.conn, destination, handler, c.log, c.metrics)
	if err := cons.start(ctx); err != nil {
		return nil, err
	}
	c.consumers = append(c.consumers, cons)
	return cons, nil
}

// IsHealthy reports whether the broker connection is open. It never panics
// and never talks to the broker.
func (c *Client) IsHealthy() (healthy bool) {
	if c == nil || c.conn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("Health probe failed", logger.Any("panic", r))
			healthy = false
		}
	}()

	return !c.conn.IsClosed()
}

// Close stops every consumer, closes every sender and then the connection.
// Each step runs even if an earlier one failed.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	consumers := c.consumers
	c.consumers = nil
	c.mu.Unlock()

	var errs error
	for _, cons := range consumers {
		if err := cons.Stop(ctx); err != nil {
			c.log.Warn("Failed to stop consumer",
				logger.String("destination", cons.Destination()),
				logger.Err(err),
			)
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, c.registry.CloseAll())

	if !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("Failed to close connection", logger.Err(err))
			errs = multierr.Append(errs, messaging.ConnectionError("close", "", err))
		}
	}

	c.log.Info("RabbitMQ client closed")
	return errs
}
