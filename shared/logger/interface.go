package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Context-aware variants attach request_id / message_id found in ctx
	InfoCtx(ctx context.Context, msg string, fields ...Field)
	DebugCtx(ctx context.Context, msg string, fields ...Field)
	WarnCtx(ctx context.Context, msg string, fields ...Field)
	ErrorCtx(ctx context.Context, msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	With(fields ...Field) Logger

	Sync() error
}

// Field represents a logging field (abstraction over zap.Field)
type Field interface {
	Key() string
	Value() interface{}
}

// Config holds logger configuration
type Config struct {
	ServiceName string
	Environment string
	Level       Level
}

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "info"
	}
}

// ParseLevel maps a textual level to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

type zapField struct {
	field zap.Field
}

func (f zapField) Key() string {
	return f.field.Key
}

func (f zapField) Value() interface{} {
	return f.field.Interface
}

func String(key, value string) Field {
	return zapField{field: zap.String(key, value)}
}

func Strings(key string, value []string) Field {
	return zapField{field: zap.Strings(key, value)}
}

func Int(key string, value int) Field {
	return zapField{field: zap.Int(key, value)}
}

func Int64(key string, value int64) Field {
	return zapField{field: zap.Int64(key, value)}
}

func Uint64(key string, value uint64) Field {
	return zapField{field: zap.Uint64(key, value)}
}

func Bool(key string, value bool) Field {
	return zapField{field: zap.Bool(key, value)}
}

func Any(key string, value interface{}) Field {
	return zapField{field: zap.Any(key, value)}
}

func Err(err error) Field {
	return zapField{field: zap.Error(err)}
}

func Duration(key string, value time.Duration) Field {
	return zapField{field: zap.Duration(key, value)}
}

func toZapFields(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		if zf, ok := f.(zapField); ok {
			zapFields[i] = zf.field
		} else {
			zapFields[i] = zap.Any(f.Key(), f.Value())
		}
	}
	return zapFields
}
