package telemetry

import (
	"context"
	"log/slog"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

const logScope = "prayerrelay"

// NewSlogHandler returns a handler that writes every record to next and also
// emits it through provider, typically global.GetLoggerProvider() after
// [Setup]. Level filtering is decided by next.
func NewSlogHandler(next slog.Handler, provider otellog.LoggerProvider) slog.Handler {
	return &otelHandler{next: next, logger: provider.Logger(logScope)}
}

type otelHandler struct {
	next   slog.Handler
	logger otellog.Logger
	attrs  []otellog.KeyValue
	prefix string // group path, "a.b."
}

func (h *otelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *otelHandler) Handle(ctx context.Context, r slog.Record) error {
	var rec otellog.Record
	rec.SetTimestamp(r.Time)
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.SetBody(otellog.StringValue(r.Message))
	rec.AddAttributes(h.attrs...)

	var kvs []otellog.KeyValue
	r.Attrs(func(a slog.Attr) bool {
		kvs = appendAttr(kvs, h.prefix, a)
		return true
	})
	rec.AddAttributes(kvs...)

	h.logger.Emit(ctx, rec)
	return h.next.Handle(ctx, r)
}

func (h *otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kvs := make([]otellog.KeyValue, len(h.attrs), len(h.attrs)+len(attrs))
	copy(kvs, h.attrs)
	for _, a := range attrs {
		kvs = appendAttr(kvs, h.prefix, a)
	}
	return &otelHandler{next: h.next.WithAttrs(attrs), logger: h.logger, attrs: kvs, prefix: h.prefix}
}

func (h *otelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &otelHandler{next: h.next.WithGroup(name), logger: h.logger, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// appendAttr converts a, flattening groups into dotted keys.
func appendAttr(kvs []otellog.KeyValue, prefix string, a slog.Attr) []otellog.KeyValue {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return kvs
	}
	key := prefix + a.Key

	switch a.Value.Kind() {
	case slog.KindGroup:
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, ga := range a.Value.Group() {
			kvs = appendAttr(kvs, p, ga)
		}
		return kvs
	case slog.KindString:
		return append(kvs, otellog.String(key, a.Value.String()))
	case slog.KindInt64:
		return append(kvs, otellog.Int64(key, a.Value.Int64()))
	case slog.KindUint64:
		return append(kvs, otellog.Int64(key, int64(a.Value.Uint64())))
	case slog.KindFloat64:
		return append(kvs, otellog.Float64(key, a.Value.Float64()))
	case slog.KindBool:
		return append(kvs, otellog.Bool(key, a.Value.Bool()))
	case slog.KindTime:
		return append(kvs, otellog.String(key, a.Value.Time().Format(time.RFC3339Nano)))
	default:
		// Durations, errors and anything else go out in their text form.
		return append(kvs, otellog.String(key, a.Value.String()))
	}
}

func severity(l slog.Level) otellog.Severity {
	switch {
	case l >= slog.LevelError:
		return otellog.SeverityError
	case l >= slog.LevelWarn:
		return otellog.SeverityWarn
	case l >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
