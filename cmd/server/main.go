package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Abdallah-Labiba/Azure-POC/internal/config"
	"github.com/Abdallah-Labiba/Azure-POC/internal/database"
	"github.com/Abdallah-Labiba/Azure-POC/internal/document"
	"github.com/Abdallah-Labiba/Azure-POC/internal/handlers"
	"github.com/Abdallah-Labiba/Azure-POC/internal/metrics"
	"github.com/Abdallah-Labiba/Azure-POC/internal/notify"
	"github.com/Abdallah-Labiba/Azure-POC/internal/routes"
	"github.com/Abdallah-Labiba/Azure-POC/internal/todo"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging/rabbitmq"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log, err := logger.NewZapLogger(logger.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Level:       logger.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting data service",
		logger.String("port", cfg.Port),
		logger.String("environment", cfg.Environment),
		logger.Bool("tracing_enabled", cfg.EnableTracing))

	if cfg.EnableTracing {
		if err := tracing.InitTracer(tracing.Config{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: serviceVersion,
			Environment:    cfg.Environment,
			JaegerEndpoint: cfg.JaegerEndpoint,
		}); err != nil {
			log.Fatal("Failed to initialize tracer", logger.Err(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownTracer(ctx); err != nil {
				log.Error("Error shutting down tracer", logger.Err(err))
			}
		}()
		log.Info("Tracer initialized successfully")
	} else {
		tracing.SetPropagator()
	}

	metrics.InitMetrics(prometheus.DefaultRegisterer)
	brokerMetrics, err := rabbitmq.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Failed to register broker metrics", logger.Err(err))
	}
	log.Info("Metrics initialized successfully")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	db, err := database.NewConnection(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", logger.Err(err))
	}
	defer db.Close()

	if err := database.InitSchema(startupCtx, db); err != nil {
		log.Fatal("Failed to initialize database schema", logger.Err(err))
	}
	log.Info("Database schema initialized")

	mongoClient, err := document.Connect(startupCtx, cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", logger.Err(err))
	}
	documents := document.NewStore(mongoClient, cfg.MongoDatabase, cfg.MongoCollection)
	if err := documents.EnsureIndexes(startupCtx); err != nil {
		log.Fatal("Failed to create document indexes", logger.Err(err))
	}
	log.Info("Connected to MongoDB successfully",
		logger.String("database", cfg.MongoDatabase),
		logger.String("collection", cfg.MongoCollection))

	broker, err := rabbitmq.Dial(cfg.RabbitMQURL, log, rabbitmq.Options{
		Exchange: cfg.RabbitMQExchange,
		Source:   cfg.ServiceName,
		Metrics:  brokerMetrics,
	})
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", logger.Err(err))
	}
	log.Info("Connected to RabbitMQ successfully")

	todos := todo.NewStore(db)
	notifier := notify.New(broker, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.SetupRoutes(router, log, cfg.ServiceName, prometheus.DefaultGatherer, routes.Handlers{
		Health: handlers.NewHealthHandler(log, cfg.ServiceName, serviceVersion,
			handlers.Check{Name: "postgres", Probe: todos.Ping},
			handlers.Check{Name: "mongodb", Probe: documents.Ping},
			handlers.BrokerCheck("rabbitmq", broker.IsHealthy),
		),
		Todos:        handlers.NewTodoHandler(log, todos, notifier),
		Documents:    handlers.NewDocumentHandler(log, documents, notifier),
		MessageQueue: handlers.NewMessageQueueHandler(log, broker),
	})
	log.Info("Routes configured")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Shutdown signal received, initiating graceful shutdown",
			logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("Server failed", logger.Err(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Error shutting down HTTP server", logger.Err(err))
	}

	if err := broker.Close(ctx); err != nil {
		log.Error("Error closing RabbitMQ client", logger.Err(err))
	} else {
		log.Info("RabbitMQ client closed")
	}

	if err := mongoClient.Disconnect(ctx); err != nil {
		log.Error("Error disconnecting from MongoDB", logger.Err(err))
	}

	log.Info("Service shutdown complete")
}
