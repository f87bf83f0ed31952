package events

import (
	"context"
	"fmt"

	"github.com/Abdallah-Labiba/Azure-POC/internal/notify"
	"github.com/Abdallah-Labiba/Azure-POC/shared/httpclient"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// SnapshotFetcher reads the current state of an entity from the data API.
type SnapshotFetcher interface {
	GetJSON(ctx context.Context, path string, out any) error
}

// ChangeEventHandler processes the change notifications emitted by the API.
type ChangeEventHandler struct {
	log       logger.Logger
	snapshots SnapshotFetcher
}

// NewChangeEventHandler builds the handler. snapshots may be nil, in which
// case events are only logged.
func NewChangeEventHandler(log logger.Logger, snapshots SnapshotFetcher) *ChangeEventHandler {
	return &ChangeEventHandler{
		log:       log,
		snapshots: snapshots,
	}
}

// RegisterAll binds every change notification type to h.
func (h *ChangeEventHandler) RegisterAll(r *Registry) {
	for _, t := range []string{
		notify.TodoCreated, notify.TodoUpdated, notify.TodoDeleted,
		notify.DocumentCreated, notify.DocumentUpdated, notify.DocumentDeleted,
	} {
		r.Register(t, h.Handle)
	}
}

func (h *ChangeEventHandler) Handle(ctx context.Context, msg messaging.Message) error {
	entity, _ := msg.Properties["entity"].(string)
	entityID, _ := msg.Properties["entityId"].(string)
	if entity == "" || entityID == "" {
		return messaging.Permanent(fmt.Errorf("%s message %s is missing entity properties", msg.Type, msg.ID))
	}

	log := h.log.With(
		logger.String("type", msg.Type),
		logger.String("entity", entity),
		logger.String("entity_id", entityID),
	)
	log.InfoCtx(ctx, "Processing change event",
		logger.String("source", msg.Source),
		logger.String("content", msg.Content))

	if h.snapshots == nil || isDeletion(msg.Type) {
		return nil
	}

	path, ok := snapshotPath(entity, entityID)
	if !ok {
		log.WarnCtx(ctx, "Unknown entity, skipping snapshot")
		return nil
	}

	var snapshot map[string]any
	if err := h.snapshots.GetJSON(ctx, path, &snapshot); err != nil {
		// A later delete won the race; there is nothing left to resolve.
		if httpclient.IsNotFound(err) {
			log.WarnCtx(ctx, "Entity no longer exists")
			return nil
		}
		return fmt.Errorf("fetch %s %s: %w", entity, entityID, err)
	}

	log.DebugCtx(ctx, "Resolved entity snapshot", logger.Any("snapshot", snapshot))
	return nil
}

func isDeletion(msgType string) bool {
	return msgType == notify.TodoDeleted || msgType == notify.DocumentDeleted
}

func snapshotPath(entity, id string) (string, bool) {
	switch entity {
	case notify.EntityTodo:
		return "/api/todos/" + id, true
	case notify.EntityDocument:
		return "/api/documents/" + id, true
	default:
		return "", false
	}
}
