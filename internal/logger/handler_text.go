package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// TextTimeLayout is the timestamp written at the start of every text line.
const TextTimeLayout = "2006-01-02 15:04:05"

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
)

// ColorTextHandler writes one line per record:
//
//	[2006-01-02 15:04:05] [INFO] message key=value key="value with spaces"
//
// With color on, the status code is colored by class and the destination,
// lock token, strategy and error values are highlighted.
type ColorTextHandler struct {
	opts     slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	pre      []byte // attrs bound with WithAttrs, already formatted
	group    string // dotted prefix for keys added after WithGroup
	useColor bool
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	h := &ColorTextHandler{w: w, mu: &sync.Mutex{}, useColor: useColor}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	name, color := levelStyle(r.Level)

	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, TextTimeLayout)
	buf = append(buf, "] ["...)
	buf = h.paint(buf, color, name)
	buf = append(buf, "] "...)
	if strings.ContainsAny(r.Message, "\r\n") {
		buf = strconv.AppendQuote(buf, r.Message)
	} else {
		buf = append(buf, r.Message...)
	}
	buf = append(buf, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.group, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := *h
	child.pre = append([]byte(nil), h.pre...)
	for _, a := range attrs {
		child.pre = h.appendAttr(child.pre, h.group, a)
	}
	return &child
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.group = h.group + name + "."
	return &child
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG", colorGray
	case level < slog.LevelWarn:
		return "INFO", colorGreen
	case level < slog.LevelError:
		return "WARN", colorYellow
	default:
		return "ERROR", colorRed
	}
}

func (h *ColorTextHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, prefix, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = h.paint(buf, colorGray, prefix+a.Key)
	buf = append(buf, '=')
	return h.paint(buf, valueColor(a), formatValue(a.Value))
}

func (h *ColorTextHandler) paint(buf []byte, color, s string) []byte {
	if !h.useColor || color == "" {
		return append(buf, s...)
	}
	buf = append(buf, color...)
	buf = append(buf, s...)
	return append(buf, colorReset...)
}

func valueColor(a slog.Attr) string {
	switch a.Key {
	case KeyStatus:
		return statusColor(a.Value)
	case KeyDestination, KeyStrategy:
		return colorMagenta
	case KeyLockToken:
		return colorBlue
	case KeyError:
		return colorRed
	}
	return ""
}

// statusColor picks a color by HTTP status class. 207 is only returned when
// some members of a COPY, MOVE or DELETE failed, so it is flagged like a 4xx.
func statusColor(v slog.Value) string {
	var code int64
	switch v.Kind() {
	case slog.KindInt64:
		code = v.Int64()
	case slog.KindUint64:
		code = int64(v.Uint64())
	default:
		return ""
	}

	switch {
	case code == http.StatusMultiStatus, code >= 400 && code < 500:
		return colorYellow
	case code >= 500:
		return colorRed
	case code >= 200 && code < 300:
		return colorGreen
	}
	return colorCyan
}

// formatValue renders v, quoting it when it is empty or holds spaces,
// quotes, '=' or control characters.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}

	if s == "" || strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '=' || !unicode.IsPrint(r)
}
