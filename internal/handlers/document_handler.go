package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Abdallah-Labiba/Azure-POC/internal/document"
	"github.com/Abdallah-Labiba/Azure-POC/internal/metrics"
	"github.com/Abdallah-Labiba/Azure-POC/internal/notify"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

type DocumentStore interface {
	List(ctx context.Context) ([]document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	Create(ctx context.Context, d *document.Document) error
	Update(ctx context.Context, id string, d *document.Document) (*document.Document, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, term string) ([]document.Document, error)
	ListByTag(ctx context.Context, tag string) ([]document.Document, error)
}

type DocumentHandler struct {
	logger   logger.Logger
	store    DocumentStore
	notifier *notify.Notifier
}

func NewDocumentHandler(log logger.Logger, store DocumentStore, notifier *notify.Notifier) *DocumentHandler {
	return &DocumentHandler{
		logger:   log,
		store:    store,
		notifier: notifier,
	}
}

type documentRequest struct {
	Name     string         `json:"name" binding:"required"`
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
	Tags     []string       `json:"tags"`
}

func (r documentRequest) toDocument() *document.Document {
	return &document.Document{
		Name:     r.Name,
		Content:  r.Content,
		Metadata: r.Metadata,
		Tags:     r.Tags,
	}
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list documents", err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	d, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Document not available", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	ctx := c.Request.Context()

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	d := req.toDocument()
	if err := h.store.Create(ctx, d); err != nil {
		respondError(c, "Failed to create document", err)
		return
	}
	metrics.RecordMutation(notify.EntityDocument, "create")

	id := d.ID.Hex()
	tracing.AddSpanAttributes(ctx,
		attribute.String("document.id", id),
		attribute.String("operation", "create_document"),
	)
	h.logger.InfoCtx(ctx, "Document created", logger.String("document_id", id))

	if err := h.notifier.DocumentCreated(ctx, id, d.Name); err != nil {
		metrics.RecordNotificationFailure(notify.DocumentCreated)
		respondNotificationError(c, err)
		return
	}

	c.Header("Location", "/api/documents/"+id)
	c.JSON(http.StatusCreated, d)
}

func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updated, err := h.store.Update(ctx, id, req.toDocument())
	if err != nil {
		respondError(c, "Failed to update document", err)
		return
	}
	metrics.RecordMutation(notify.EntityDocument, "update")
	h.logger.InfoCtx(ctx, "Document updated", logger.String("document_id", id))

	if err := h.notifier.DocumentUpdated(ctx, id, updated.Name); err != nil {
		metrics.RecordNotificationFailure(notify.DocumentUpdated)
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.store.Delete(ctx, id); err != nil {
		respondError(c, "Failed to delete document", err)
		return
	}
	metrics.RecordMutation(notify.EntityDocument, "delete")
	h.logger.InfoCtx(ctx, "Document deleted", logger.String("document_id", id))

	if err := h.notifier.DocumentDeleted(ctx, id); err != nil {
		metrics.RecordNotificationFailure(notify.DocumentDeleted)
		respondNotificationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) SearchDocuments(c *gin.Context) {
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search term is required"})
		return
	}

	docs, err := h.store.Search(c.Request.Context(), term)
	if err != nil {
		respondError(c, "Failed to search documents", err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) ListByTag(c *gin.Context) {
	docs, err := h.store.ListByTag(c.Request.Context(), c.Param("tag"))
	if err != nil {
		respondError(c, "Failed to list documents by tag", err)
		return
	}
	c.JSON(http.StatusOK, docs)
}
