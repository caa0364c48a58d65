// logging.go - Structured logging setup.
//
// log/slog is the only logging facility anywhere in this codebase's
// lineage, so it's what the engine uses too: a handler wrapping a plain
// io.Writer with a fixed timestamp format, mutex-guarded so the watchdog
// goroutine and an interactive monitor session can log concurrently
// without interleaving partial lines.

package dbgprobe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// textHandler is a minimal slog.Handler writing one line per record:
// "time level message key=value ...".
type textHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewTextHandler returns a slog.Handler writing to w at the given
// minimum level.
func NewTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return &textHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.level != nil {
		minLevel = h.level.Level()
	}
	return level >= minLevel
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line := fmt.Sprintf("%s %-5s %s", r.Time.Format(time.RFC3339Nano), r.Level, r.Message)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// NewLogger builds a slog.Logger at the configured level writing to w.
func NewLogger(w io.Writer, levelName string) *slog.Logger {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(NewTextHandler(w, level))
}
