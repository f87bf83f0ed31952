package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdallah-Labiba/Azure-POC/internal/metrics"
	"github.com/Abdallah-Labiba/Azure-POC/internal/notify"
	"github.com/Abdallah-Labiba/Azure-POC/internal/todo"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

type TodoStore interface {
	List(ctx context.Context) ([]todo.Todo, error)
	Get(ctx context.Context, id int) (*todo.Todo, error)
	Create(ctx context.Context, t *todo.Todo) error
	Update(ctx context.Context, t *todo.Todo) error
	Delete(ctx context.Context, id int) error
	ListByCategory(ctx context.Context, category string) ([]todo.Todo, error)
	ListPending(ctx context.Context) ([]todo.Todo, error)
}

type TodoHandler struct {
	logger   logger.Logger
	store    TodoStore
	notifier *notify.Notifier
}

func NewTodoHandler(log logger.Logger, store TodoStore, notifier *notify.Notifier) *TodoHandler {
	return &TodoHandler{
		logger:   log,
		store:    store,
		notifier: notifier,
	}
}

type todoRequest struct {
	ID          *int    `json:"id"`
	Title       string  `json:"title" binding:"required,max=200"`
	Done        bool    `json:"done"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Category    *string `json:"category"`
	Priority    int     `json:"priority" binding:"omitempty,min=1,max=5"`
}

func (r todoRequest) toTodo() *todo.Todo {
	return &todo.Todo{
		Title:       r.Title,
		Done:        r.Done,
		Description: r.Description,
		Category:    r.Category,
		Priority:    r.Priority,
	}
}

func (h *TodoHandler) ListTodos(c *gin.Context) {
	todos, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list todos", err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

func (h *TodoHandler) GetTodo(c *gin.Context) {
	id, ok := parseTodoID(c)
	if !ok {
		return
	}

	t, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Todo not available", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TodoHandler) CreateTodo(c *gin.Context) {
	ctx := c.Request.Context()

	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	t := req.toTodo()
	if err := h.store.Create(ctx, t); err != nil {
		respondError(c, "Failed to create todo", err)
		return
	}
	metrics.RecordMutation(notify.EntityTodo, "create")

	tracing.AddSpanAttributes(ctx,
		attribute.Int("todo.id", t.ID),
		attribute.String("operation", "create_todo"),
	)
	h.logger.InfoCtx(ctx, "Todo created", logger.Int("todo_id", t.ID))

	if err := h.notifier.TodoCreated(ctx, t.ID, t.Title); err != nil {
		metrics.RecordNotificationFailure(notify.TodoCreated)
		respondNotificationError(c, err)
		return
	}

	c.Header("Location", "/api/todos/"+strconv.Itoa(t.ID))
	c.JSON(http.StatusCreated, t)
}

func (h *TodoHandler) UpdateTodo(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseTodoID(c)
	if !ok {
		return
	}

	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.ID != nil && *req.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID mismatch"})
		return
	}

	t := req.toTodo()
	t.ID = id
	if err := h.store.Update(ctx, t); err != nil {
		respondError(c, "Failed to update todo", err)
		return
	}
	metrics.RecordMutation(notify.EntityTodo, "update")
	h.logger.InfoCtx(ctx, "Todo updated", logger.Int("todo_id", id))

	if err := h.notifier.TodoUpdated(ctx, t.ID, t.Title); err != nil {
		metrics.RecordNotificationFailure(notify.TodoUpdated)
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *TodoHandler) DeleteTodo(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseTodoID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		respondError(c, "Failed to delete todo", err)
		return
	}
	metrics.RecordMutation(notify.EntityTodo, "delete")
	h.logger.InfoCtx(ctx, "Todo deleted", logger.Int("todo_id", id))

	if err := h.notifier.TodoDeleted(ctx, id); err != nil {
		metrics.RecordNotificationFailure(notify.TodoDeleted)
		respondNotificationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TodoHandler) ListByCategory(c *gin.Context) {
	todos, err := h.store.ListByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		respondError(c, "Failed to list todos by category", err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

func (h *TodoHandler) ListPending(c *gin.Context) {
	todos, err := h.store.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list pending todos", err)
		return
	}
	c.JSON(http.StatusOK, todos)
}

func parseTodoID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid todo id",
			"details": err.Error(),
		})
		return 0, false
	}
	return id, true
}
