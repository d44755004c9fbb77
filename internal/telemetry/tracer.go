package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/dittodav/internal/logger"
)

// Attribute keys attached to WebDAV spans.
const (
	AttrClientIP    = "client.ip"
	AttrMethod      = "dav.method"
	AttrPath        = "dav.path"
	AttrDestination = "dav.destination"
	AttrDepth       = "dav.depth"
	AttrOverwrite   = "dav.overwrite"
	AttrStatus      = "dav.status"
	AttrStrategy    = "dav.strategy"
	AttrNodes       = "dav.nodes"
	AttrFailed      = "dav.failed"
	AttrBytes       = "dav.bytes_written"
	AttrLockToken   = "dav.lock_token"
	AttrStoreID     = "store.id"
	AttrStoreType   = "store.type"
)

// Span names.
const (
	SpanRequest  = "dav.request"
	SpanCopy     = "dav.COPY"
	SpanMove     = "dav.MOVE"
	SpanPut      = "dav.PUT"
	SpanMkcol    = "dav.MKCOL"
	SpanDelete   = "dav.DELETE"
	SpanLock     = "dav.LOCK"
	SpanUnlock   = "dav.UNLOCK"
	SpanExecute  = "engine.execute"
	SpanCopyByte = "copier.copy"
)

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func Method(m string) attribute.KeyValue {
	return attribute.String(AttrMethod, m)
}

func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

func Destination(p string) attribute.KeyValue {
	return attribute.String(AttrDestination, p)
}

func Depth(d string) attribute.KeyValue {
	return attribute.String(AttrDepth, d)
}

func Overwrite(o bool) attribute.KeyValue {
	return attribute.Bool(AttrOverwrite, o)
}

func Status(code int) attribute.KeyValue {
	return attribute.Int(AttrStatus, code)
}

func Strategy(name string) attribute.KeyValue {
	return attribute.String(AttrStrategy, name)
}

func Nodes(n int) attribute.KeyValue {
	return attribute.Int(AttrNodes, n)
}

func Failed(n int) attribute.KeyValue {
	return attribute.Int(AttrFailed, n)
}

func LockToken(token string) attribute.KeyValue {
	return attribute.String(AttrLockToken, token)
}

func BytesWritten(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

func StoreID(id string) attribute.KeyValue {
	return attribute.String(AttrStoreID, id)
}

// StartDAVSpan starts a span for a WebDAV method on a path. When the span is
// sampled, its trace and span IDs are copied into the request's LogContext
// so log lines can be joined with the trace.
func StartDAVSpan(ctx context.Context, spanName, method, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all, Method(method), Path(path))
	all = append(all, attrs...)
	ctx, span := StartSpan(ctx, spanName, trace.WithAttributes(all...))

	sc := span.SpanContext()
	if lc := logger.FromContext(ctx); lc != nil && sc.IsValid() {
		ctx = logger.WithContext(ctx, lc.WithTrace(sc.TraceID().String(), sc.SpanID().String()))
	}
	return ctx, span
}
