package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

const (
	// DefaultDestination is used when a publish names no destination.
	DefaultDestination = "default"

	// MessageTTL bounds how long an unconsumed message stays on a queue.
	MessageTTL = 7 * 24 * time.Hour

	reservedPrefix = "x-"
)

var envelopeFields = []string{"id", "content", "type", "createdat", "source", "properties"}

// Publisher sends envelopes through per-destination senders.
type Publisher struct {
	registry *SenderRegistry
	exchange string
	source   string
	ttl      time.Duration
	log      logger.Logger
	metrics  *Metrics
}

func NewPublisher(registry *SenderRegistry, exchange, source string, log logger.Logger, metrics *Metrics) *Publisher {
	return &Publisher{
		registry: registry,
		exchange: exchange,
		source:   source,
		ttl:      MessageTTL,
		log:      log,
		metrics:  metrics,
	}
}

// PublishContent wraps content in a new message and publishes it.
func (p *Publisher) PublishContent(ctx context.Context, content, destination, msgType string) (*messaging.Message, error) {
	msg := messaging.NewMessage(content, msgType)
	if err := p.Publish(ctx, msg, destination); err != nil {
		return nil, err
	}
	return msg, nil
}

// Publish transmits msg to destination exactly once. Missing id, type and
// timestamp are filled in on msg itself so callers can report them.
func (p *Publisher) Publish(ctx context.Context, msg *messaging.Message, destination string) (err error) {
	if destination == "" {
		destination = DefaultDestination
	}
	defer func() {
		p.metrics.RecordPublish(destination, err)
	}()

	if msg == nil {
		return messaging.ValidationError("publish", destination, "message must not be nil")
	}
	msg.EnsureDefaults()
	if msg.Content == "" {
		return messaging.ValidationError("publish", destination, "message content must not be empty")
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return messaging.ValidationError("publish", destination, "message id %q is not a UUID", msg.ID)
	}
	if msg.Source == "" {
		msg.Source = p.source
	}
	if key, ok := reservedKey(msg.Properties); ok {
		return messaging.ValidationError("publish", destination, "property %q is reserved", key)
	}

	body, err := msg.Encode()
	if err != nil {
		return messaging.SerializationError("publish", destination, err)
	}

	headers, err := toTable(msg.Properties)
	if err != nil {
		return messaging.SerializationError("publish", destination, err)
	}
	if err := headers.Validate(); err != nil {
		return messaging.SerializationError("publish", destination, err)
	}

	ctx, span := tracing.StartMessagingSpan(ctx, trace.SpanKindProducer, "publish", destination, msg.ID)
	defer span.End()
	tracing.InjectAMQP(ctx, headers)

	s, err := p.registry.GetOrCreate(destination)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sender unavailable")
		return err
	}

	publishing := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(p.ttl.Milliseconds(), 10),
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Type:         msg.Type,
		AppId:        msg.Source,
		Body:         body,
	}

	if err := s.send(ctx, p.exchange, publishing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return messaging.TransportError("publish", destination, err)
	}

	p.log.InfoCtx(ctx, "Message sent",
		logger.String("destination", destination),
		logger.String("message_id", msg.ID),
		logger.String("type", msg.Type),
	)
	return nil
}

// reservedKey returns the first property key that would collide with the
// envelope, the trace propagation headers or the broker's x- namespace.
func reservedKey(props map[string]any) (string, bool) {
	if len(props) == 0 {
		return "", false
	}

	reserved := make(map[string]struct{}, len(envelopeFields)+3)
	for _, f := range envelopeFields {
		reserved[f] = struct{}{}
	}
	for _, f := range tracing.PropagationFields() {
		reserved[strings.ToLower(f)] = struct{}{}
	}

	for key := range props {
		lower := strings.ToLower(key)
		if _, ok := reserved[lower]; ok {
			return key, true
		}
		if strings.HasPrefix(lower, reservedPrefix) {
			return key, true
		}
	}
	return "", false
}

// toTable copies props into an AMQP table, converting nested JSON objects and
// arrays into the field types the wire format accepts.
func toTable(props map[string]any) (amqp.Table, error) {
	table := make(amqp.Table, len(props))
	for k, v := range props {
		fv, err := toField(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		table[k] = fv
	}
	return table, nil
}

func toField(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		return toTable(val)
	case amqp.Table:
		return toTable(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			fv, err := toField(item)
			if err != nil {
				return nil, err
			}
			out[i] = fv
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out, nil
	case uint:
		return int64(val), nil
	case uint16:
		return int32(val), nil
	case uint32:
		return int64(val), nil
	default:
		return v, nil
	}
}
