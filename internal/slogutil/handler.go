// Package slogutil provides the slog handlers and logger constructors used by the server.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RequestIDKey is the attribute the server tags per-request loggers with.
// LineHandler lifts it out of the attribute list into a short prefix.
const RequestIDKey = "requestID"

const (
	timeFormat    = "2006-01-02T15:04:05.000Z07:00"
	shortIDLength = 8
)

// LineHandler writes one line per record:
//
//	2026-01-15T10:04:05.123Z INFO  [6df1047e] Request handled status=200 path=/html
type LineHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string // dotted group prefix for attribute keys
	reqID  string
	attrs  string // preformatted " k=v" pairs from WithAttrs
}

// NewLineHandler creates a line handler. A nil opts logs at info and above.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &LineHandler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	b.WriteString(t.UTC().Format(timeFormat))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", levelString(r.Level))

	reqID := h.reqID
	var tail strings.Builder
	tail.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == RequestIDKey && h.prefix == "" {
			reqID = a.Value.String()
			return true
		}
		writeAttr(&tail, h.prefix, a)
		return true
	})

	if reqID != "" {
		b.WriteByte('[')
		b.WriteString(shortID(reqID))
		b.WriteString("] ")
	}
	b.WriteString(r.Message)
	b.WriteString(tail.String())
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		if a.Key == RequestIDKey && h.prefix == "" {
			h2.reqID = a.Value.String()
			continue
		}
		writeAttr(&b, h.prefix, a)
	}
	h2.attrs = b.String()
	return &h2
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// writeAttr appends " key=value", flattening groups into dotted keys.
func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, p, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// formatValue renders v, quoting strings that would break the line apart.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().UTC().Format(timeFormat)
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " =\"\n\t") {
		return strconv.Quote(s)
	}
	return s
}
