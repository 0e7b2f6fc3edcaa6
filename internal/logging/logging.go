// Package logging provides structured logging for the waitlist service.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

// Context keys for request-scoped identity fields.
const (
	TraceIDKey contextKey = "trace_id"
	UserIDKey  contextKey = "user_id"
	TenantKey  contextKey = "tenant"
)

// Logger wraps logrus with component naming and context propagation.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the named component. Level and format come from
// LOG_LEVEL and LOG_FORMAT (json by default).
func New(component string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &Logger{entry: l.WithField("component", component)}
}

// NewDefault is an alias of New kept for constructor call sites that default a
// nil logger.
func NewDefault(component string) *Logger {
	return New(component)
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// WithContext attaches trace, user, and tenant identifiers from the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	entry := l.entry
	if v := GetTraceID(ctx); v != "" {
		entry = entry.WithField("trace_id", v)
	}
	if v := GetUserID(ctx); v != "" {
		entry = entry.WithField("user_id", v)
	}
	if v := GetTenant(ctx); v != "" {
		entry = entry.WithField("tenant", v)
	}
	return &Logger{entry: entry}
}

// LogSecurityEvent records an auth or abuse related event at warn level.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).WithField("security_event", event).Warn("security event")
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context, or empty.
func GetTraceID(ctx context.Context) string {
	return stringFromContext(ctx, TraceIDKey)
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the authenticated user ID from the context, or empty.
func GetUserID(ctx context.Context) string {
	return stringFromContext(ctx, UserIDKey)
}

// WithTenant stores the resolved tenant (project ID) in the context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	if tenant == "" {
		return ctx
	}
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetTenant returns the tenant from the context, or empty.
func GetTenant(ctx context.Context) string {
	return stringFromContext(ctx, TenantKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
