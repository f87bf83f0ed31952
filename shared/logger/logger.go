package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the public method and write from reported call sites.
const callerSkip = 2

type zapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds the process logger. Development gets a console encoder
// at debug level; other environments emit JSON at cfg.Level. Sampling is off
// so per-message consumer lines are never dropped under load.
func NewZapLogger(cfg Config) (Logger, error) {
	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	encoding := "json"
	if cfg.Environment == "development" {
		level.SetLevel(zapcore.DebugLevel)
		encoding = "console"
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "timestamp"
	encoder.MessageKey = "message"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	zcfg := zap.Config{
		Level:            level,
		Development:      cfg.Environment == "development",
		Encoding:         encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"service":     cfg.ServiceName,
			"environment": cfg.Environment,
		},
	}

	l, err := zcfg.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nil, err
	}
	return &zapLogger{logger: l}, nil
}

func NewDefaultLogger(serviceName, environment string) (Logger, error) {
	return NewZapLogger(Config{
		ServiceName: serviceName,
		Environment: environment,
		Level:       InfoLevel,
	})
}

// Wrap adapts an existing zap logger, e.g. one from zaptest.
func Wrap(l *zap.Logger) Logger {
	return &zapLogger{logger: l.WithOptions(zap.AddCallerSkip(callerSkip))}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return Wrap(zap.NewNop())
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// write is the single path to zap. Fields are only converted when the
// entry is enabled.
func write(base *zap.Logger, lvl zapcore.Level, msg string, fields []Field) {
	if ce := base.Check(lvl, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func withIDs(l *zap.Logger, ctx context.Context) *zap.Logger {
	if id := GetRequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if id := GetMessageID(ctx); id != "" {
		l = l.With(zap.String("message_id", id))
	}
	return l
}

func (l *zapLogger) Info(msg string, fields ...Field)  { write(l.logger, zapcore.InfoLevel, msg, fields) }
func (l *zapLogger) Debug(msg string, fields ...Field) { write(l.logger, zapcore.DebugLevel, msg, fields) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { write(l.logger, zapcore.WarnLevel, msg, fields) }
func (l *zapLogger) Error(msg string, fields ...Field) { write(l.logger, zapcore.ErrorLevel, msg, fields) }

// Fatal logs and then exits the process.
func (l *zapLogger) Fatal(msg string, fields ...Field) { write(l.logger, zapcore.FatalLevel, msg, fields) }

func (l *zapLogger) InfoCtx(ctx context.Context, msg string, fields ...Field) {
	write(withIDs(l.logger, ctx), zapcore.InfoLevel, msg, fields)
}

func (l *zapLogger) DebugCtx(ctx context.Context, msg string, fields ...Field) {
	write(withIDs(l.logger, ctx), zapcore.DebugLevel, msg, fields)
}

func (l *zapLogger) WarnCtx(ctx context.Context, msg string, fields ...Field) {
	write(withIDs(l.logger, ctx), zapcore.WarnLevel, msg, fields)
}

func (l *zapLogger) ErrorCtx(ctx context.Context, msg string, fields ...Field) {
	write(withIDs(l.logger, ctx), zapcore.ErrorLevel, msg, fields)
}

// WithContext binds the request and message ids found in ctx.
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	return &zapLogger{logger: withIDs(l.logger, ctx)}
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(toZapFields(fields)...)}
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}
