package rabbitmq

import (
	"context"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// DeclareQueue records that destination is expected to exist. Queues are
// provisioned outside the application, so nothing is sent to the broker.
func (c *Client) DeclareQueue(ctx context.Context, destination string, durable bool) error {
	if destination == "" {
		return messaging.ValidationError("declare queue", destination, "destination must not be empty")
	}

	c.log.DebugCtx(ctx, "Queue declaration requested, queues are provisioned externally",
		logger.String("destination", destination),
		logger.Bool("durable", durable),
	)
	return nil
}

// DeclareQueues runs DeclareQueue for each destination.
func DeclareQueues(ctx context.Context, broker messaging.Broker, destinations []string) error {
	for _, d := range destinations {
		if err := broker.DeclareQueue(ctx, d, true); err != nil {
			return err
		}
	}
	return nil
}
