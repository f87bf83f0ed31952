package messaging

import "context"

// Handler processes one received message. A nil return completes the
// message; an error abandons it so the broker redelivers it, unless the error
// wraps ErrPermanent, in which case the message is rejected.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, msg *Message, destination string) error
	PublishContent(ctx context.Context, content, destination, msgType string) (*Message, error)
}

// Subscription is a running consumer loop.
type Subscription interface {
	Destination() string
	// Stop ends the loop once the in-flight message (if any) is settled.
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
}

// Consumer defines the interface for consuming messages
type Consumer interface {
	Consume(ctx context.Context, destination string, handler Handler) (Subscription, error)
}

// Broker is the full client surface used by the services.
type Broker interface {
	Publisher
	Consumer
	DeclareQueue(ctx context.Context, destination string, durable bool) error
	IsHealthy() bool
	Close(ctx context.Context) error
}
