package log

import (
	"context"
	"log/slog"

	"github.com/writestack/noteflow/internal/requestid"
)

type scheduleKey struct{}

// WithScheduleID tags ctx so every log record emitted during a trigger run
// carries the schedule being processed.
func WithScheduleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scheduleKey{}, id)
}

// ContextHandler wraps an slog.Handler and enriches each record with values
// carried in the context: request_id for API calls, schedule_id for trigger
// runs.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, _ := ctx.Value(scheduleKey{}).(string); id != "" {
		r.AddAttrs(slog.String("schedule_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
