package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loykin/reflexive/internal/logstore"
)

// Handler records every slog record it sees as a log entry, using the level
// as kind and the attributes as meta, then hands the record to next.
// A nil next makes it a pure recorder.
type Handler struct {
	next   slog.Handler
	sink   Appender
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps next.
func NewHandler(next slog.Handler, sink Appender) *Handler {
	return &Handler{next: next, sink: sink}
}

// KindForLevel maps slog levels onto log kinds.
func KindForLevel(l slog.Level) logstore.Kind {
	switch {
	case l < slog.LevelInfo:
		return logstore.KindDebug
	case l < slog.LevelWarn:
		return logstore.KindInfo
	case l < slog.LevelError:
		return logstore.KindWarn
	default:
		return logstore.KindError
	}
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	if h.next == nil {
		return true
	}
	return h.next.Enabled(ctx, l)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var meta map[string]any
	add := func(groups []string, a slog.Attr) {
		if meta == nil {
			meta = make(map[string]any)
		}
		flatten(meta, groups, a)
	}
	// bound attrs already carry their group path
	for _, a := range h.attrs {
		add(nil, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.groups, a)
		return true
	})
	if r.Message != "" {
		h.sink.Append(KindForLevel(r.Level), r.Message, meta)
	}
	if h.next == nil {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	for _, a := range attrs {
		c.attrs = append(c.attrs, prefixed(h.groups, a))
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return c
}

func (h *Handler) clone() *Handler {
	return &Handler{
		next:   h.next,
		sink:   h.sink,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

// prefixed bakes the current group path into a pre-bound attribute's key.
func prefixed(groups []string, a slog.Attr) slog.Attr {
	for i := len(groups) - 1; i >= 0; i-- {
		a = slog.Group(groups[i], a)
	}
	return a
}

// flatten stores a under a dotted key built from groups and nested group attrs.
func flatten(dst map[string]any, groups []string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range v.Group() {
			flatten(dst, sub, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	key := a.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}
	dst[key] = v.Any()
}

var slogOnce sync.Once

// InstallSlogDefault makes slog.Default record into sink before delegating to
// next. next must not be the package's built-in default handler, which would
// loop back through the log package. Only the first call has an effect.
func InstallSlogDefault(next slog.Handler, sink Appender) {
	slogOnce.Do(func() {
		slog.SetDefault(slog.New(NewHandler(next, sink)))
	})
}
