// Package logger is the process-wide structured logger. Output goes through
// slog; request-scoped fields are taken from the LogContext stored in the
// context passed to the *Ctx functions.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	// level is shared by every handler, so SetLevel takes effect without a rebuild.
	level = new(slog.LevelVar)

	mu       sync.RWMutex
	format   = FormatText
	output   io.Writer = os.Stdout
	logFile  *os.File
	useColor bool
	slogger  *slog.Logger
)

func init() {
	useColor = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild swaps in a handler for the current format and output. Callers
// must not hold mu.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(contextHandler{h})
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// Init configures level, format and output. Output is "stdout", "stderr" or
// a file path opened for appending; a previously opened log file is closed.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var (
			w     io.Writer
			f     *os.File
			color bool
		)
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			var err error
			f, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			w = f
		}

		mu.Lock()
		previous := logFile
		output, useColor, logFile = w, color, f
		mu.Unlock()
		if previous != nil {
			_ = previous.Close()
		}
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

// SetLevel sets the minimum log level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat selects text or json output. Unknown formats are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != FormatText && name != FormatJSON {
		return
	}
	mu.Lock()
	changed := format != name
	format = name
	mu.Unlock()
	if changed {
		rebuild()
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

func log(ctx context.Context, l slog.Level, msg string, args ...any) {
	if l < level.Level() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	getLogger().Log(ctx, l, msg, args...)
}

// ============================================================================
// Structured Logging API
// ============================================================================

// Debug logs at debug level with structured fields
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args...) }

// Info logs at info level with structured fields
func Info(msg string, args ...any) { log(context.Background(), slog.LevelInfo, msg, args...) }

// Warn logs at warn level with structured fields
func Warn(msg string, args ...any) { log(context.Background(), slog.LevelWarn, msg, args...) }

// Error logs at error level with structured fields
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args...) }

// DebugCtx logs at debug level with the request fields found in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args...)
}

// InfoCtx logs at info level with the request fields found in ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args...)
}

// WarnCtx logs at warn level with the request fields found in ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args...)
}

// ErrorCtx logs at error level with the request fields found in ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args...)
}

// ============================================================================
// Request fields
// ============================================================================

// contextHandler prepends the LogContext of the record's context so request
// fields lead every line.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	lc := FromContext(ctx)
	if lc == nil {
		return h.Handler.Handle(ctx, r)
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(lc.attrs()...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// Duration returns duration since start time in milliseconds
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
