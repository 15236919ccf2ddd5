package gelf

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/adapter/pii"
	"github.com/V4T54L/hekad-gateway/internal/domain"
	"github.com/V4T54L/hekad-gateway/internal/pkg/logger"
)

// componentKey is the attribute the services tag their loggers with. It
// stands in for the source context when none is given explicitly.
const componentKey = "component"

// sourceContextKey is the snake_case spelling of SourceContextProperty.
const sourceContextKey = "source_context"

// errorKey is the attribute whose error value becomes the event's failure.
const errorKey = "error"

// Handler is a slog.Handler that encodes records as GELF and writes them to
// a RecordSink.
type Handler struct {
	formatter   *Formatter
	sink        domain.RecordSink
	minSeverity domain.Severity
	redactor    *pii.Redactor
	metrics     *metrics.GatewayMetrics

	attrs  []slog.Attr
	prefix string
}

// Option configures a Handler.
type Option func(*Handler)

// WithRedactor masks sensitive properties before encoding.
func WithRedactor(r *pii.Redactor) Option {
	return func(h *Handler) { h.redactor = r }
}

// WithMetrics counts written records and failures.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a GELF handler that drops events below minSeverity.
func NewHandler(formatter *Formatter, sink domain.RecordSink, minSeverity domain.Severity, opts ...Option) *Handler {
	h := &Handler{
		formatter:   formatter,
		sink:        sink,
		minSeverity: minSeverity,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterSink attaches the GELF pipeline next to base and returns the
// combined handler. The host application installs the result as its logger;
// the GELF side never replaces base.
func RegisterSink(base slog.Handler, formatter *Formatter, sink domain.RecordSink, minSeverity domain.Severity, opts ...Option) slog.Handler {
	return Tee(base, NewHandler(formatter, sink, minSeverity, opts...))
}

// SeverityFromLevel maps a slog level onto the host severity scale.
func SeverityFromLevel(level slog.Level) domain.Severity {
	switch {
	case level < slog.LevelDebug:
		return domain.SeverityVerbose
	case level < slog.LevelInfo:
		return domain.SeverityDebug
	case level < slog.LevelWarn:
		return domain.SeverityInformation
	case level < slog.LevelError:
		return domain.SeverityWarning
	case level < logger.LevelFatal:
		return domain.SeverityError
	default:
		return domain.SeverityFatal
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return SeverityFromLevel(level) >= h.minSeverity
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	event := h.toEvent(r)
	h.redactor.Redact(&event)

	record, err := h.formatter.Encode(event)
	if err != nil {
		if h.metrics != nil {
			h.metrics.EncodeErrors.Inc()
		}
		return fmt.Errorf("failed to encode GELF record: %w", err)
	}
	if err := h.sink.Write(ctx, record); err != nil {
		if h.metrics != nil {
			h.metrics.SinkErrors.Inc()
		}
		return fmt.Errorf("failed to write GELF record: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordsTotal.WithLabelValues(event.Level.String()).Inc()
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *Handler) toEvent(r slog.Record) domain.LogEvent {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	event := domain.LogEvent{
		Timestamp:       ts,
		Level:           SeverityFromLevel(r.Level),
		MessageTemplate: r.Message,
		Message:         r.Message,
		Properties:      make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}

	for _, a := range h.attrs {
		h.addAttr(&event, r, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(&event, r, h.prefix, a)
		return true
	})

	if _, ok := event.Properties[SourceContextProperty]; !ok {
		if ctx, ok := event.Properties[sourceContextKey]; ok {
			event.Properties[SourceContextProperty] = ctx
			delete(event.Properties, sourceContextKey)
		} else if component, ok := event.Properties[componentKey]; ok {
			event.Properties[SourceContextProperty] = component
		}
	}
	return event
}

func (h *Handler) addAttr(event *domain.LogEvent, r slog.Record, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.addAttr(event, r, groupPrefix, ga)
		}
		return
	}

	key := prefix + a.Key
	if key == errorKey && event.Failure == nil {
		if err, ok := a.Value.Any().(error); ok {
			event.Failure = failureFrom(err, r.PC)
			return
		}
	}
	event.Properties[key] = a.Value.Any()
}

func failureFrom(err error, pc uintptr) *domain.Failure {
	f := &domain.Failure{Message: err.Error()}
	if pc != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		f.Source = frame.Function
	}
	if detailed := fmt.Sprintf("%+v", err); detailed != f.Message {
		f.StackTrace = detailed
	}
	return f
}

// Tee fans every record out to all handlers that accept its level.
func Tee(handlers ...slog.Handler) slog.Handler {
	return teeHandler(handlers)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var result *multierror.Error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
