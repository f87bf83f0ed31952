package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// AMQPHeaderCarrier adapts AMQP message headers to propagation.TextMapCarrier.
type AMQPHeaderCarrier amqp.Table

var _ propagation.TextMapCarrier = AMQPHeaderCarrier(nil)

func (c AMQPHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c AMQPHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c AMQPHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectAMQP writes the span context of ctx into headers.
func InjectAMQP(ctx context.Context, headers amqp.Table) {
	otel.GetTextMapPropagator().Inject(ctx, AMQPHeaderCarrier(headers))
}

// ExtractAMQP returns ctx enriched with the span context found in headers.
func ExtractAMQP(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, AMQPHeaderCarrier(headers))
}

// PropagationFields lists the header names the configured propagator writes.
func PropagationFields() []string {
	return otel.GetTextMapPropagator().Fields()
}
