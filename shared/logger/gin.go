package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// GinMiddleware assigns a request id (reusing the inbound X-Request-ID when
// present) and logs the start and completion of every HTTP request.
func GinMiddleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		path := c.Request.URL.Path

		logger.DebugCtx(ctx, "HTTP request started",
			String("method", c.Request.Method),
			String("path", path),
			String("query", c.Request.URL.RawQuery),
			String("ip", c.ClientIP()),
			String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []Field{
			String("method", c.Request.Method),
			String("path", path),
			Int("status", statusCode),
			Duration("duration", duration),
			Int64("duration_ms", duration.Milliseconds()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, String("error", errs))
		}

		switch {
		case statusCode >= 500:
			logger.ErrorCtx(ctx, "HTTP request completed", fields...)
		case statusCode >= 400:
			logger.WarnCtx(ctx, "HTTP request completed", fields...)
		default:
			logger.InfoCtx(ctx, "HTTP request completed", fields...)
		}
	}
}

// GetRequestIDFromGin extracts request_id from Gin context
func GetRequestIDFromGin(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return GetRequestID(c.Request.Context())
}

// GetLoggerFromGin retrieves the request-scoped logger set by InjectLogger
func GetLoggerFromGin(c *gin.Context) Logger {
	if logger, exists := c.Get("logger"); exists {
		if l, ok := logger.(Logger); ok {
			return l.WithContext(c.Request.Context())
		}
	}
	return NewNop()
}

// InjectLogger is a middleware that injects the logger into Gin context
func InjectLogger(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	}
}
