package notify

import (
	"context"
	"strconv"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// Event names double as message type and destination queue.
const (
	TodoCreated     = "todo-created"
	TodoUpdated     = "todo-updated"
	TodoDeleted     = "todo-deleted"
	DocumentCreated = "document-created"
	DocumentUpdated = "document-updated"
	DocumentDeleted = "document-deleted"
)

const (
	EntityTodo     = "todo"
	EntityDocument = "document"
)

// Notifier announces committed mutations on the broker.
type Notifier struct {
	publisher messaging.Publisher
	log       logger.Logger
}

func New(publisher messaging.Publisher, log logger.Logger) *Notifier {
	return &Notifier{publisher: publisher, log: log}
}

func (n *Notifier) TodoCreated(ctx context.Context, id int, title string) error {
	return n.publish(ctx, TodoCreated, EntityTodo, strconv.Itoa(id), "New todo created: "+title)
}

func (n *Notifier) TodoUpdated(ctx context.Context, id int, title string) error {
	return n.publish(ctx, TodoUpdated, EntityTodo, strconv.Itoa(id), "Todo updated: "+title)
}

func (n *Notifier) TodoDeleted(ctx context.Context, id int) error {
	return n.publish(ctx, TodoDeleted, EntityTodo, strconv.Itoa(id), "Todo deleted with ID: "+strconv.Itoa(id))
}

func (n *Notifier) DocumentCreated(ctx context.Context, id, name string) error {
	return n.publish(ctx, DocumentCreated, EntityDocument, id, "New document created: "+name)
}

func (n *Notifier) DocumentUpdated(ctx context.Context, id, name string) error {
	return n.publish(ctx, DocumentUpdated, EntityDocument, id, "Document updated: "+name)
}

func (n *Notifier) DocumentDeleted(ctx context.Context, id string) error {
	return n.publish(ctx, DocumentDeleted, EntityDocument, id, "Document deleted with ID: "+id)
}

func (n *Notifier) publish(ctx context.Context, event, entity, entityID, content string) error {
	msg := messaging.NewMessage(content, event)
	msg.Properties["entity"] = entity
	msg.Properties["entityId"] = entityID

	if err := n.publisher.Publish(ctx, msg, event); err != nil {
		n.log.ErrorCtx(ctx, "Failed to publish change notification",
			logger.String("event", event),
			logger.String("entity_id", entityID),
			logger.Err(err),
		)
		return err
	}
	return nil
}
