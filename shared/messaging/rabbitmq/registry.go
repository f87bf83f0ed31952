package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

var (
	errRegistryClosed = errors.New("sender registry is closed")
	errSenderClosed   = errors.New("sender channel closed")
)

// Sender is the long-lived handle for one destination. Its channel runs in
// confirm mode and every publish is mandatory, so a message the broker cannot
// route or store is reported instead of dropped. AMQP channels are not safe
// for concurrent publishing, so sends are serialized.
type Sender struct {
	destination string

	mu       sync.Mutex
	ch       Channel
	confirms chan amqp.Confirmation
	returns  chan amqp.Return
	closed   chan *amqp.Error
	tag      uint64
}

func newSender(destination string, ch Channel) (*Sender, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &Sender{
		destination: destination,
		ch:          ch,
		confirms:    ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		returns:     ch.NotifyReturn(make(chan amqp.Return, 1)),
		closed:      ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

func (s *Sender) Destination() string {
	return s.destination
}

// usable reports whether the broker still holds the sender's channel open.
func (s *Sender) usable() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// send publishes msg and waits for the broker to confirm it.
func (s *Sender) send(ctx context.Context, exchange string, msg amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ch.PublishWithContext(ctx, exchange, s.destination, true, false, msg); err != nil {
		return err
	}
	s.tag++

	returns := s.returns
	var returned *amqp.Return
	for {
		select {
		case r, ok := <-returns:
			if !ok {
				returns = nil
				continue
			}
			if r.MessageId == msg.MessageId {
				returned = &r
			}
			continue
		case c, ok := <-s.confirms:
			if !ok {
				return errSenderClosed
			}
			// Confirms left over from a publish whose caller gave up.
			if c.DeliveryTag < s.tag {
				continue
			}
			if returned == nil {
				returned = s.drainReturn(msg.MessageId)
			}
			if returned != nil {
				return fmt.Errorf("message returned by broker: %d %s", returned.ReplyCode, returned.ReplyText)
			}
			if !c.Ack {
				return errors.New("message rejected by broker")
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for publish confirm: %w", ctx.Err())
		}
	}
}

// drainReturn picks up a return that was queued alongside its confirm.
func (s *Sender) drainReturn(messageID string) *amqp.Return {
	var found *amqp.Return
	for {
		select {
		case r, ok := <-s.returns:
			if !ok {
				return found
			}
			if r.MessageId == messageID {
				found = &r
			}
		default:
			return found
		}
	}
}

func (s *Sender) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.Close()
}

// SenderRegistry hands out one sender per destination. A sender whose channel
// the broker closed is replaced on the next request for that destination.
type SenderRegistry struct {
	conn    Connection
	log     logger.Logger
	metrics *Metrics

	mu      sync.Mutex
	senders map[string]*Sender
	closed  bool
}

func NewSenderRegistry(conn Connection, log logger.Logger, metrics *Metrics) *SenderRegistry {
	return &SenderRegistry{
		conn:    conn,
		log:     log,
		metrics: metrics,
		senders: make(map[string]*Sender),
	}
}

// GetOrCreate returns the sender for destination, opening a channel on first use.
func (r *SenderRegistry) GetOrCreate(destination string) (*Sender, error) {
	if destination == "" {
		return nil, messaging.ValidationError("get sender", destination, "destination must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, messaging.ConnectionError("get sender", destination, errRegistryClosed)
	}

	if s, ok := r.senders[destination]; ok {
		if s.usable() {
			return s, nil
		}
		r.log.Warn("Sender channel was closed by the broker, reopening",
			logger.String("destination", destination))
		_ = s.close()
		delete(r.senders, destination)
	}

	ch, err := r.conn.Channel()
	if err != nil {
		r.metrics.SetOpenSenders(len(r.senders))
		return nil, messaging.ConnectionError("get sender", destination, err)
	}

	s, err := newSender(destination, ch)
	if err != nil {
		_ = ch.Close()
		r.metrics.SetOpenSenders(len(r.senders))
		return nil, messaging.TransportError("get sender", destination, err)
	}
	r.senders[destination] = s
	r.metrics.SetOpenSenders(len(r.senders))

	r.log.Debug("Opened sender", logger.String("destination", destination))
	return s, nil
}

// Len reports the number of open senders.
func (r *SenderRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.senders)
}

// CloseAll closes every sender once. Failures are logged and returned
// together; no failure prevents the remaining senders from being closed.
func (r *SenderRegistry) CloseAll() error {
	r.mu.Lock()
	senders := r.senders
	r.senders = make(map[string]*Sender)
	r.closed = true
	r.mu.Unlock()

	var errs error
	for destination, s := range senders {
		if err := s.close(); err != nil {
			r.log.Warn("Failed to close sender",
				logger.String("destination", destination),
				logger.Err(err),
			)
			errs = multierr.Append(errs, messaging.TransportError("close sender", destination, err))
		}
	}
	r.metrics.SetOpenSenders(0)

	return errs
}
