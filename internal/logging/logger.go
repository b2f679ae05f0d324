// Package logging provides structured logging with trace/partner context,
// adapted from the service platform's logrus wrapper to this runtime's
// vocabulary (cycles, operations, invariants instead of HTTP/blockchain/DB).
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through this package.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	PartnerKey ContextKey = "partner"
	ServiceKey ContextKey = "service"
)

// Logger wraps logrus.Logger with runtime-specific fields.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for service at the given level ("debug", "info", ...)
// with either "json" or "text" formatting.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a logger from LOG_LEVEL / LOG_FORMAT, defaulting to
// info/json when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying trace/partner fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if partner := ctx.Value(PartnerKey); partner != nil {
		entry = entry.WithField("partner", partner)
	}
	return entry
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string { return uuid.New().String() }

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func WithPartner(ctx context.Context, partner string) context.Context {
	return context.WithValue(ctx, PartnerKey, partner)
}

// LogCycle logs one sense-making cycle summary (a coarser, service-wide
// companion to internal/agent's own zerolog per-cycle trace).
func (l *Logger) LogCycle(ctx context.Context, priority string, blocked bool, energy, v float64) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"priority": priority,
		"blocked":  blocked,
		"energy":   energy,
		"v":        v,
	}).Info("agent cycle")
}

// LogOperation logs a catalog operation execution outcome.
func (l *Logger) LogOperation(ctx context.Context, id string, success bool, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": id,
		"success":   success,
	})
	if err != nil {
		entry.WithError(err).Warn("operation failed")
		return
	}
	entry.Info("operation executed")
}

// LogInvariant logs a verification outcome.
func (l *Logger) LogInvariant(ctx context.Context, id string, satisfied bool, detail string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"invariant": id,
		"satisfied": satisfied,
		"detail":    detail,
	})
	if satisfied {
		entry.Debug("invariant satisfied")
	} else {
		entry.Error("invariant violated")
	}
}

// LogAudit records a mutation attempt's durable outcome.
func (l *Logger) LogAudit(ctx context.Context, action, resource, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":   action,
		"resource": resource,
		"result":   result,
		"audit":    true,
	}).Info("audit")
}

var defaultLogger *Logger

// InitDefault initializes the process-wide default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the process-wide logger, initializing a fallback if needed.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("noesis", "info", "json")
	}
	return defaultLogger
}
