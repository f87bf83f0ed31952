package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

// prefetchCount keeps at most one unsettled message per consumer so messages
// on one destination are handled strictly one after another.
const prefetchCount = 1

var errConnectionClosed = errors.New("connection closed")

// consumer is one receive loop bound to a single destination.
type consumer struct {
	conn        Connection
	destination string
	tag         string
	handler     messaging.Handler
	log         logger.Logger
	metrics     *Metrics
	newBackOff  func() backoff.BackOff

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	ch  Channel
	err error
}

func newConsumer(conn Connection, destination string, handler messaging.Handler, log logger.Logger, metrics *Metrics) *consumer {
	return &consumer{
		conn:        conn,
		destination: destination,
		tag:         destination + "-" + uuid.New().String(),
		handler:     handler,
		log:         log.With(logger.String("destination", destination)),
		metrics:     metrics,
		newBackOff:  defaultBackOff,
		done:        make(chan struct{}),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// start subscribes and launches the loop. Subscription failures are returned
// to the caller and leave nothing running.
func (c *consumer) start(ctx context.Context) error {
	deliveries, err := c.subscribe()
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(loopCtx, deliveries)

	c.log.Info("Consumer started", logger.String("consumer_tag", c.tag))
	return nil
}

func (c *consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, messaging.ConnectionError("consume", c.destination, err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, messaging.TransportError("consume", c.destination, fmt.Errorf("failed to set qos: %w", err))
	}

	deliveries, err := ch.Consume(
		c.destination, // queue
		c.tag,         // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, messaging.TransportError("consume", c.destination, fmt.Errorf("failed to register consumer: %w", err))
	}

	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()

	return deliveries, nil
}

func (c *consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	defer c.release()

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				next, err := c.resubscribe(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					c.setErr(err)
					c.log.Error("Consumer stopped", logger.Err(err))
					return
				}
				deliveries = next
				continue
			}
			c.handle(ctx, d)
		}
	}
}

// resubscribe replaces a channel the broker closed underneath the loop. It
// gives up once the connection itself is gone.
func (c *consumer) resubscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.log.Warn("Delivery stream closed, resubscribing")
	c.release()

	var deliveries <-chan amqp.Delivery
	operation := func() error {
		if c.conn.IsClosed() {
			return backoff.Permanent(messaging.ConnectionError("consume", c.destination, errConnectionClosed))
		}
		d, err := c.subscribe()
		if err != nil {
			c.log.Warn("Resubscribe attempt failed", logger.Err(err))
			return err
		}
		deliveries = d
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}

	c.log.Info("Consumer resubscribed")
	return deliveries, nil
}

func (c *consumer) handle(ctx context.Context, d amqp.Delivery) {
	msg, err := messaging.Decode(d.Body)
	if err != nil {
		c.log.Error("Failed to decode message, rejecting",
			logger.String("message_id", d.MessageId),
			logger.Err(messaging.SerializationError("consume", c.destination, err)),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error("Failed to reject message", logger.Err(messaging.TransportError("reject", c.destination, nackErr)))
		}
		c.metrics.RecordDisposition(c.destination, DispositionRejected)
		return
	}

	// Stop must not interrupt a handler that is already running.
	hctx := tracing.ExtractAMQP(context.WithoutCancel(ctx), d.Headers)
	hctx = logger.WithMessageID(hctx, msg.ID)
	hctx, span := tracing.StartMessagingSpan(hctx, trace.SpanKindConsumer, "process", c.destination, msg.ID)
	defer span.End()

	c.metrics.IncInFlight(c.destination)
	start := time.Now()
	err = c.invoke(hctx, msg)
	c.metrics.ObserveHandler(c.destination, time.Since(start).Seconds())
	c.metrics.DecInFlight(c.destination)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if errors.Is(err, messaging.ErrPermanent) {
			c.log.WarnCtx(hctx, "Message cannot be processed, rejecting", logger.Err(err))
			if nackErr := d.Nack(false, false); nackErr != nil {
				c.log.ErrorCtx(hctx, "Failed to reject message", logger.Err(messaging.TransportError("reject", c.destination, nackErr)))
			}
			c.metrics.RecordDisposition(c.destination, DispositionRejected)
			return
		}
		c.log.ErrorCtx(hctx, "Message handler failed, abandoning", logger.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.ErrorCtx(hctx, "Failed to abandon message", logger.Err(messaging.TransportError("abandon", c.destination, nackErr)))
		}
		c.metrics.RecordDisposition(c.destination, DispositionAbandoned)
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.log.ErrorCtx(hctx, "Failed to complete message", logger.Err(messaging.TransportError("complete", c.destination, ackErr)))
		return
	}
	c.metrics.RecordDisposition(c.destination, DispositionCompleted)
	c.log.InfoCtx(hctx, "Message completed", logger.String("type", msg.Type))
}

func (c *consumer) invoke(ctx context.Context, msg messaging.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = messaging.HandlerError("handle", c.destination, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := c.handler(ctx, msg); err != nil {
		return messaging.HandlerError("handle", c.destination, err)
	}
	return nil
}

// release cancels the broker-side consumer and closes the channel. Messages
// the broker delivered but nobody settled are requeued by the broker.
func (c *consumer) release() {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.Cancel(c.tag, false); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.log.Warn("Failed to cancel consumer", logger.Err(err))
	}
	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.log.Warn("Failed to close consumer channel", logger.Err(err))
	}
}

func (c *consumer) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *consumer) Destination() string {
	return c.destination
}

// Stop ends the loop. A message being handled is settled by its handler's
// outcome before the channel closes; ctx only bounds how long Stop waits.
func (c *consumer) Stop(ctx context.Context) error {
	c.cancel()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop consumer %s: %w", c.destination, ctx.Err())
	}
}

func (c *consumer) Done() <-chan struct{} {
	return c.done
}

// Err reports why the loop ended on its own, or nil.
func (c *consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
