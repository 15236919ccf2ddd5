package gelf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/adapter/pii"
	"github.com/V4T54L/hekad-gateway/internal/domain"
	"github.com/V4T54L/hekad-gateway/internal/domain/mocks"
	"github.com/V4T54L/hekad-gateway/internal/pkg/logger"
)

func TestSeverityFromLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  domain.Severity
	}{
		{logger.LevelVerbose, domain.SeverityVerbose},
		{slog.LevelDebug, domain.SeverityDebug},
		{slog.LevelInfo, domain.SeverityInformation},
		{slog.LevelWarn, domain.SeverityWarning},
		{slog.LevelError, domain.SeverityError},
		{logger.LevelFatal, domain.SeverityFatal},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityFromLevel(tt.level))
		})
	}
}

func TestHandler(t *testing.T) {
	formatter := NewFormatter("web-1", "i-1", "prod")

	t.Run("Writes one record per event", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityInformation))

		log.Info("user logged in", "user", "bob", "attempt", 2)

		records := sink.Written()
		require.Len(t, records, 1)
		got := decode(t, records[0])
		assert.Equal(t, "user logged in", got["full_message"])
		assert.Equal(t, float64(6), got["level"])
		assert.Equal(t, "bob", got["_user"])
		assert.Equal(t, "2", got["_attempt"])
	})

	t.Run("Drops events below the minimum severity", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityWarning))

		log.Info("ignored")
		log.Warn("kept")

		require.Len(t, sink.Written(), 1)
		assert.Equal(t, "kept", decode(t, sink.Written()[0])["full_message"])
	})

	t.Run("Component becomes the facility", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose)).With("component", "supervisor")

		log.Debug("spawned")

		got := decode(t, sink.Written()[0])
		assert.Equal(t, "supervisor", got["facility"])
		assert.Equal(t, "supervisor", got["logger"])
		assert.Equal(t, float64(7), got["level"])
	})

	t.Run("source_context attribute becomes the facility", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose)).With("component", "supervisor")

		log.Info("hello", "source_context", "my.ctx")

		got := decode(t, sink.Written()[0])
		assert.Equal(t, "my.ctx", got["facility"])
		assert.Equal(t, "my.ctx", got["logger"])
		assert.Equal(t, "my.ctx", got["_SourceContext"])
		assert.NotContains(t, got, "_source_context")
	})

	t.Run("Error attribute becomes the failure", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose))

		log.Log(context.Background(), logger.LevelFatal, "process aborted", "error", errors.New("exec format error"))

		got := decode(t, sink.Written()[0])
		assert.Equal(t, float64(2), got["level"])
		assert.Equal(t, "exec format error", got["_ExceptionMessage"])
		assert.Contains(t, got, "_ExceptionSource")
		assert.Contains(t, got, "_StackTrace")
		assert.NotContains(t, got, "_error")
	})

	t.Run("Groups flatten with dots", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose))

		log.WithGroup("req").Info("handled", "path", "/status", slog.Group("peer", "ip", "10.0.0.1"))

		got := decode(t, sink.Written()[0])
		assert.Equal(t, "/status", got["_req.path"])
		assert.Equal(t, "10.0.0.1", got["_req.peer.ip"])
	})

	t.Run("Redacts configured properties", func(t *testing.T) {
		sink := &mocks.MockRecordSink{}
		redactor := pii.NewRedactor([]string{"password"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose, WithRedactor(redactor)))

		log.Info("login", "password", "hunter2")

		assert.Equal(t, pii.RedactedPlaceholder, decode(t, sink.Written()[0])["_password"])
	})

	t.Run("Sink failure is returned and counted", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.NewGatewayMetrics(reg)
		sink := &mocks.MockRecordSink{WriteErr: errors.New("disk full")}
		h := NewHandler(formatter, sink, domain.SeverityVerbose, WithMetrics(m))

		err := h.Handle(context.Background(), slog.NewRecord(timeFixture(), slog.LevelInfo, "x", 0))

		require.Error(t, err)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.SinkErrors))
	})

	t.Run("Counts written records by level", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.NewGatewayMetrics(reg)
		sink := &mocks.MockRecordSink{}
		log := slog.New(NewHandler(formatter, sink, domain.SeverityVerbose, WithMetrics(m)))

		log.Warn("a")
		log.Warn("b")

		assert.Equal(t, float64(2), testutil.ToFloat64(m.RecordsTotal.WithLabelValues("warning")))
	})
}

func TestRegisterSink(t *testing.T) {
	var base bytes.Buffer
	sink := &mocks.MockRecordSink{}
	h := RegisterSink(logger.NewHandler(&base, "debug"), NewFormatter("h", "i", "d"), sink, domain.SeverityWarning)
	log := slog.New(h)

	log.Info("only base")
	log.Error("both")

	assert.Contains(t, base.String(), "only base")
	assert.Contains(t, base.String(), "both")
	require.Len(t, sink.Written(), 1)
	assert.Equal(t, "both", decode(t, sink.Written()[0])["full_message"])
}
