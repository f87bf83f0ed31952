package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Abdallah-Labiba/Azure-POC/internal/config"
	"github.com/Abdallah-Labiba/Azure-POC/internal/events"
	"github.com/Abdallah-Labiba/Azure-POC/shared/httpclient"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging/rabbitmq"
	"github.com/Abdallah-Labiba/Azure-POC/shared/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log, err := logger.NewZapLogger(logger.Config{
		ServiceName: cfg.ServiceName + "-worker",
		Environment: cfg.Environment,
		Level:       logger.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.EnableTracing {
		if err := tracing.InitTracer(tracing.Config{
			ServiceName:    cfg.ServiceName + "-worker",
			ServiceVersion: "1.0.0",
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
	} else {
		tracing.SetPropagator()
	}

	brokerMetrics, err := rabbitmq.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("Failed to register broker metrics", logger.Err(err))
	}

	broker, err := rabbitmq.Dial(cfg.RabbitMQURL, log, rabbitmq.Options{
		Exchange: cfg.RabbitMQExchange,
		Source:   cfg.ServiceName + "-worker",
		Metrics:  brokerMetrics,
	})
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", logger.Err(err))
	}
	log.Info("Connected to RabbitMQ successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rabbitmq.DeclareQueues(ctx, broker, cfg.WorkerDestinations); err != nil {
		log.Fatal("Failed to declare queues", logger.Err(err))
	}

	var snapshots events.SnapshotFetcher
	if cfg.DataServiceURL != "" {
		httpCfg := httpclient.DefaultConfig()
		httpCfg.BaseURL = cfg.DataServiceURL
		snapshots = httpclient.New(httpCfg)
		log.Info("Resolving entity snapshots", logger.String("data_service_url", cfg.DataServiceURL))
	}

	registry := events.NewRegistry(log)
	events.NewChangeEventHandler(log, snapshots).RegisterAll(registry)
	log.Info("Message handlers registered",
		logger.Int("handler_count", len(registry.Types())))

	subs := make([]messaging.Subscription, 0, len(cfg.WorkerDestinations))
	for _, destination := range cfg.WorkerDestinations {
		sub, err := broker.Consume(ctx, destination, registry.Handle)
		if err != nil {
			log.Fatal("Failed to start consumer",
				logger.String("destination", destination),
				logger.Err(err))
		}
		subs = append(subs, sub)
	}
	log.Info("Consumers started", logger.Strings("destinations", cfg.WorkerDestinations))

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Metrics server starting", logger.String("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	for _, sub := range subs {
		g.Go(func() error {
			select {
			case <-sub.Done():
				if err := sub.Err(); err != nil {
					return fmt.Errorf("consumer %s: %w", sub.Destination(), err)
				}
				return nil
			case <-gctx.Done():
				return nil
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown initiated, stopping consumers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, sub := range subs {
			if err := sub.Stop(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := broker.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("close broker: %w", err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with errors", logger.Err(err))
		return
	}
	log.Info("Worker shutdown complete")
}
