package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abdallah-Labiba/Azure-POC/internal/handlers"
	"github.com/Abdallah-Labiba/Azure-POC/internal/metrics"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Todos        *handlers.TodoHandler
	Documents    *handlers.DocumentHandler
	MessageQueue *handlers.MessageQueueHandler
}

func SetupRoutes(
	router *gin.Engine,
	log logger.Logger,
	serviceName string,
	gatherer prometheus.Gatherer,
	h Handlers,
) {
	router.Use(tracing.GinMiddleware(serviceName))

	router.Use(logger.InjectLogger(log))
	router.Use(logger.GinMiddleware(log))
	router.Use(metrics.PrometheusMiddleware(serviceName))
	router.Use(gin.Recovery())

	router.GET("/", h.Health.Root)
	router.GET("/health", h.Health.Liveness)
	router.GET("/healthz", h.Health.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		todos := api.Group("/todos")
		todos.GET("", h.Todos.ListTodos)
		todos.POST("", h.Todos.CreateTodo)
		todos.GET("/pending", h.Todos.ListPending)
		todos.GET("/category/:category", h.Todos.ListByCategory)
		todos.GET("/:id", h.Todos.GetTodo)
		todos.PUT("/:id", h.Todos.UpdateTodo)
		todos.DELETE("/:id", h.Todos.DeleteTodo)

		docs := api.Group("/documents")
		docs.GET("", h.Documents.ListDocuments)
		docs.POST("", h.Documents.CreateDocument)
		docs.GET("/search", h.Documents.SearchDocuments)
		docs.GET("/tag/:tag", h.Documents.ListByTag)
		docs.GET("/:id", h.Documents.GetDocument)
		docs.PUT("/:id", h.Documents.UpdateDocument)
		docs.DELETE("/:id", h.Documents.DeleteDocument)

		mq := api.Group("/messagequeue")
		mq.POST("/publish", h.MessageQueue.Publish)
		mq.POST("/publish/detailed", h.MessageQueue.PublishDetailed)
		mq.POST("/queue/:queueName", h.MessageQueue.CreateQueue)
		mq.GET("/health", h.MessageQueue.Health)
	}
}
