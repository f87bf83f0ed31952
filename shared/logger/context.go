package logger

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	messageIDKey contextKey = "message_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithMessageID tags ctx with the id of the broker message being handled so
// every log line written while handling it can be correlated.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(messageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GenerateRequestID() string {
	return uuid.New().String()
}
