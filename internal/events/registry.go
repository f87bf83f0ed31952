package events

import (
	"context"
	"sort"
	"sync"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// Registry routes received messages to a handler chosen by message type.
type Registry struct {
	log      logger.Logger
	handlers map[string]messaging.Handler
	mu       sync.RWMutex
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		log:      log,
		handlers: make(map[string]messaging.Handler),
	}
}

func (r *Registry) Register(msgType string, handler messaging.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = handler
	r.log.Info("Registered message handler",
		logger.String("type", msgType))
}

// Handle dispatches msg. Types nobody registered are completed with a warning
// so they do not cycle through redelivery forever.
func (r *Registry) Handle(ctx context.Context, msg messaging.Message) error {
	r.mu.RLock()
	handler, exists := r.handlers[msg.Type]
	r.mu.RUnlock()

	if !exists {
		r.log.WarnCtx(ctx, "No handler registered for message type",
			logger.String("type", msg.Type))
		return nil
	}

	r.log.DebugCtx(ctx, "Routing message to handler",
		logger.String("type", msg.Type))

	return handler(ctx, msg)
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
