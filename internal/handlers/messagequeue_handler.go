package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging/rabbitmq"
)

// MessageQueueHandler exposes the broker client over HTTP.
type MessageQueueHandler struct {
	logger logger.Logger
	broker messaging.Broker
}

func NewMessageQueueHandler(log logger.Logger, broker messaging.Broker) *MessageQueueHandler {
	return &MessageQueueHandler{
		logger: log,
		broker: broker,
	}
}

type publishRequest struct {
	Content     string `json:"content" binding:"required"`
	QueueName   string `json:"queueName"`
	MessageType string `json:"messageType"`
}

func (h *MessageQueueHandler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	queue := req.QueueName
	if queue == "" {
		queue = rabbitmq.DefaultDestination
	}

	msg, err := h.broker.PublishContent(c.Request.Context(), req.Content, queue, req.MessageType)
	if err != nil {
		respondError(c, "Failed to publish message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Message published successfully",
		"messageId": msg.ID,
		"queueName": queue,
	})
}

func (h *MessageQueueHandler) PublishDetailed(c *gin.Context) {
	var msg messaging.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		respondBindError(c, err)
		return
	}

	queue := c.DefaultQuery("queueName", rabbitmq.DefaultDestination)
	if err := h.broker.Publish(c.Request.Context(), &msg, queue); err != nil {
		respondError(c, "Failed to publish detailed message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Detailed message published successfully",
		"messageId": msg.ID,
		"queueName": queue,
	})
}

func (h *MessageQueueHandler) CreateQueue(c *gin.Context) {
	queue := c.Param("queueName")

	durable, err := strconv.ParseBool(c.DefaultQuery("durable", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid durable flag",
			"details": err.Error(),
		})
		return
	}

	if err := h.broker.DeclareQueue(c.Request.Context(), queue, durable); err != nil {
		respondError(c, "Failed to create queue", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Queue '%s' created successfully", queue),
	})
}

func (h *MessageQueueHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"healthy":   h.broker.IsHealthy(),
		"timestamp": time.Now().UTC(),
	})
}
