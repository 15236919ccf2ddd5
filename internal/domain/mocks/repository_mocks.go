package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

// MockRecordSink is a mock implementation of domain.RecordSink for testing.
type MockRecordSink struct {
	mu       sync.Mutex
	Records  [][]byte
	Closed   bool
	WriteErr error
	CloseErr error
}

func (m *MockRecordSink) Write(ctx context.Context, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Records = append(m.Records, append([]byte(nil), record...))
	return nil
}

func (m *MockRecordSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseErr
}

// Written returns a copy of the records written so far.
func (m *MockRecordSink) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.Records...)
}

// MockCrashRepository is a mock implementation of domain.CrashRepository.
type MockCrashRepository struct {
	mu      sync.Mutex
	Reports []domain.CrashReport
	SaveErr error
}

func (m *MockCrashRepository) SaveCrash(ctx context.Context, report domain.CrashReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Reports = append(m.Reports, report)
	return nil
}

// Saved returns a copy of the saved reports.
func (m *MockCrashRepository) Saved() []domain.CrashReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CrashReport(nil), m.Reports...)
}

// MockProcessKiller is a mock implementation of domain.ProcessKiller.
type MockProcessKiller struct {
	mu     sync.Mutex
	Names  []string
	Killed int
	Err    error
}

func (m *MockProcessKiller) KillByName(ctx context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Names = append(m.Names, name)
	return m.Killed, m.Err
}

// Calls returns the names passed to KillByName.
func (m *MockProcessKiller) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Names...)
}

// MockCounter is a mock implementation of domain.Counter.
type MockCounter struct {
	mu     sync.Mutex
	Counts map[string]int64
}

func (m *MockCounter) Inc(stat string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Counts == nil {
		m.Counts = make(map[string]int64)
	}
	m.Counts[stat] += value
	return nil
}

// Get returns the accumulated value for stat.
func (m *MockCounter) Get(stat string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[stat]
}

// MockMetricsConfigurer is a mock implementation of domain.MetricsConfigurer.
type MockMetricsConfigurer struct {
	mu      sync.Mutex
	Configs []domain.MetricsSinkConfig
	Counter *MockCounter
	Err     error
}

func (m *MockMetricsConfigurer) Configure(cfg domain.MetricsSinkConfig) (domain.Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Configs = append(m.Configs, cfg)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Counter == nil {
		m.Counter = &MockCounter{}
	}
	return m.Counter, nil
}

// Calls returns the configurations received so far.
func (m *MockMetricsConfigurer) Calls() []domain.MetricsSinkConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MetricsSinkConfig(nil), m.Configs...)
}
