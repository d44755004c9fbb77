package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request
	// ========================================================================
	KeyRequestID = "request_id" // chi request ID
	KeyMethod    = "method"     // WebDAV method: COPY, MOVE, PUT, MKCOL, ...
	KeyShare     = "share"      // Share prefix the path resolved to
	KeyStatus    = "status"     // HTTP status code
	KeyClientIP  = "client_ip"  // Client IP address

	// ========================================================================
	// Resources
	// ========================================================================
	KeyPath        = "path"        // Resource path
	KeyDestination = "destination" // COPY/MOVE destination
	KeyDepth       = "depth"       // Depth header value
	KeyOverwrite   = "overwrite"   // Effective overwrite flag
	KeyStrategy    = "strategy"    // Target action strategy: fast, generic, remote
	KeyState       = "state"       // Engine state machine step
	KeyNodes       = "nodes"       // Number of nodes visited
	KeyFailed      = "failed"      // Number of failed nodes
	KeySize        = "size"        // Resource size in bytes

	// ========================================================================
	// I/O
	// ========================================================================
	KeyBytesWritten = "bytes_written" // Bytes copied
	KeyBufferSize   = "buffer_size"   // Current copier buffer size
	KeyGrowths      = "growths"       // Number of buffer doublings

	// ========================================================================
	// Locks
	// ========================================================================
	KeyLockToken = "lock_token" // Lock token
	KeyLockOwner = "lock_owner" // Lock owner description
	KeyLockScope = "lock_scope" // exclusive or shared
	KeyTimeout   = "timeout"    // Lock timeout

	// ========================================================================
	// Storage Backend
	// ========================================================================
	KeyStoreID   = "store_id"   // Physical store identity
	KeyStoreType = "store_type" // memory, filesystem, s3
	KeyBucket    = "bucket"     // S3 bucket
	KeyKey       = "key"        // S3 object key
	KeyRemote    = "remote"     // Remote WebDAV endpoint

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Typed attribute helpers
// ============================================================================

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Destination(p string) slog.Attr {
	return slog.String(KeyDestination, p)
}

func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

func Strategy(name string) slog.Attr {
	return slog.String(KeyStrategy, name)
}

func LockToken(token string) slog.Attr {
	return slog.String(KeyLockToken, token)
}

func BytesWritten(n int64) slog.Attr {
	return slog.Int64(KeyBytesWritten, n)
}

func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns an error attribute, or an empty attribute for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
