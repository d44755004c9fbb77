package logger

import (
	"context"
	"log/slog"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	RequestID string    // chi request ID
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Method    string    // WebDAV method (COPY, MOVE, PUT, ...)
	Share     string    // Share prefix the request resolved to
	ClientIP  string    // Client IP address (without port)
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a request.
func NewLogContext(requestID, method, clientIP string) *LogContext {
	return &LogContext{
		RequestID: requestID,
		Method:    method,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithShare returns a copy with the share set
func (lc *LogContext) WithShare(share string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Share = share
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// attrs returns the non-empty request fields in a fixed order.
func (lc *LogContext) attrs() []slog.Attr {
	fields := []struct{ key, val string }{
		{KeyRequestID, lc.RequestID},
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyMethod, lc.Method},
		{KeyShare, lc.Share},
		{KeyClientIP, lc.ClientIP},
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if f.val != "" {
			attrs = append(attrs, slog.String(f.key, f.val))
		}
	}
	return attrs
}
