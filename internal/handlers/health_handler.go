package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
)

// Check is one readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// BrokerCheck adapts a health flag such as Broker.IsHealthy to a Check.
func BrokerCheck(name string, healthy func() bool) Check {
	return Check{
		Name: name,
		Probe: func(context.Context) error {
			if !healthy() {
				return errors.New("connection is closed")
			}
			return nil
		},
	}
}

type HealthHandler struct {
	logger      logger.Logger
	serviceName string
	version     string
	timeout     time.Duration
	checks      []Check
}

func NewHealthHandler(log logger.Logger, serviceName, version string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		logger:      log,
		serviceName: serviceName,
		version:     version,
		timeout:     3 * time.Second,
		checks:      checks,
	}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   h.serviceName + " is running",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// Liveness only reports that the process serves requests.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": h.serviceName,
	})
}

// Readiness probes every dependency and fails if any of them is down.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name] = err.Error()
			h.logger.WarnCtx(ctx, "Readiness check failed",
				logger.String("check", check.Name),
				logger.Err(err))
			continue
		}
		results[check.Name] = "OK"
	}

	overall := "OK"
	if status != http.StatusOK {
		overall = "Unavailable"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": h.serviceName,
		"checks":  results,
	})
}
