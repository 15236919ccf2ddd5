package domain

import (
	"context"
	"strings"
)

// RecordSink receives fully encoded, newline-terminated log records.
type RecordSink interface {
	// Write stores a single record.
	Write(ctx context.Context, record []byte) error

	// Close flushes and releases the sink.
	Close() error
}

// CrashRepository persists crash reports for postmortem inspection.
type CrashRepository interface {
	SaveCrash(ctx context.Context, report CrashReport) error
}

// ProcessKiller terminates stale daemon instances found by process name.
type ProcessKiller interface {
	// KillByName kills every process named name and returns how many were
	// killed. Individual failures are reported in err but do not stop the sweep.
	KillByName(ctx context.Context, name string) (int, error)
}

// Counter is the narrow push-metrics surface the supervisor reports through.
type Counter interface {
	Inc(stat string, value int64) error
}

// MetricsSinkConfig describes the push-metrics endpoint.
type MetricsSinkConfig struct {
	ServerName       string
	ServerPort       int
	MaxUDPPacketSize int
	Prefix           string
}

// MetricsConfigurer sets up the push-metrics client. Configuring the same
// prefix again returns the existing client.
type MetricsConfigurer interface {
	Configure(cfg MetricsSinkConfig) (Counter, error)
}

// MetricsPrefix builds the metric name prefix for a deployment instance.
// Dots separate path segments in metric names, so they are replaced with
// dashes inside each part.
func MetricsPrefix(deployment, instance string) string {
	return strings.ReplaceAll(deployment, ".", "-") + "." + strings.ReplaceAll(instance, ".", "-")
}
