package lgr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// consoleHandler prints "time LEVEL message {attrs}" lines. Attributes are
// rendered by an inner JSON handler into a shared buffer.
type consoleHandler struct {
	h   slog.Handler
	buf *bytes.Buffer
	mu  *sync.Mutex
	w   io.Writer
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *consoleHandler {
	buf := &bytes.Buffer{}
	return &consoleHandler{
		h: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level:       opts.Level,
			ReplaceAttr: suppressDefaults(opts.ReplaceAttr),
		}),
		buf: buf,
		mu:  &sync.Mutex{},
		w:   w,
	}
}

func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &consoleHandler{h: h.h.WithAttrs(attrs), buf: h.buf, mu: h.mu, w: h.w}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{h: h.h.WithGroup(name), buf: h.buf, mu: h.mu, w: h.w}
}

func (h *consoleHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch {
	case r.Level <= slog.LevelDebug:
		level = color.MagentaString("%s", level)
	case r.Level <= slog.LevelInfo:
		level = color.BlueString("%s", level)
	case r.Level < slog.LevelError:
		level = color.YellowString("%s", level)
	default:
		level = color.RedString("%s", level)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.h.Handle(ctx, r); err != nil {
		return err
	}
	attrs := bytes.TrimSpace(h.buf.Bytes())

	line := fmt.Sprintf("%s %s %s",
		color.HiBlackString("%s", r.Time.Format("15:04:05.000")),
		level,
		color.WhiteString("%s", r.Message),
	)
	// An attribute-less record renders as "{}"
	if len(attrs) > 2 {
		line += " " + color.HiBlackString("%s", attrs)
	}

	_, err := fmt.Fprintln(h.w, line)
	return err
}

func suppressDefaults(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.MessageKey) {
			return slog.Attr{}
		}
		if next == nil {
			return a
		}
		return next(groups, a)
	}
}
