package rollingfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dayLayout  = "20060102"
	fileSuffix = ".log"
	filePerm   = 0644
)

// Sink writes records to one file per UTC day, named <YYYYMMDD>.log.
// Records are written as-is; the caller supplies the trailing newline.
type Sink struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	current    *os.File
	currentDay string
}

// Option configures a Sink.
type Option func(*Sink)

// WithMaxFiles keeps at most n day files, removing the oldest after a roll.
// Zero keeps everything.
func WithMaxFiles(n int) Option {
	return func(s *Sink) { s.maxFiles = n }
}

// WithClock overrides the time source used to pick the day file.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// NewSink creates the directory if needed and opens today's file for append.
func NewSink(dir string, logger *slog.Logger, opts ...Option) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	s := &Sink{
		dir:    dir,
		logger: logger.With("component", "rolling_file_sink"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.roll(s.day()); err != nil {
		return nil, err
	}
	return s, nil
}

// Write appends record to the file for the current day, rolling first if
// the day changed since the last write. The file is the durable copy, so
// records are written even when ctx is already done.
func (s *Sink) Write(_ context.Context, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if day := s.day(); s.current == nil || day != s.currentDay {
		if err := s.roll(day); err != nil {
			return err
		}
	}

	if _, err := s.current.Write(record); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}
	return nil
}

// Files returns the day files in the directory, oldest first.
func (s *Sink) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && isDayFile(entry.Name()) {
			files = append(files, filepath.Join(s.dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Close syncs and closes the current file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	if err := s.current.Sync(); err != nil {
		s.logger.Error("Failed to sync log file before closing", "error", err)
	}
	err := s.current.Close()
	s.current = nil
	return err
}

func (s *Sink) day() string {
	return s.now().UTC().Format(dayLayout)
}

func (s *Sink) roll(day string) error {
	if s.current != nil {
		if err := s.current.Sync(); err != nil {
			s.logger.Error("Failed to sync log file before rolling", "error", err)
		}
		if err := s.current.Close(); err != nil {
			s.logger.Error("Failed to close log file before rolling", "error", err)
		}
		s.current = nil
	}

	path := filepath.Join(s.dir, day+fileSuffix)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	s.current = f
	s.currentDay = day
	s.logger.Info("Rolled to log file", "path", path)

	s.prune()
	return nil
}

func (s *Sink) prune() {
	if s.maxFiles <= 0 {
		return
	}
	files, err := s.Files()
	if err != nil {
		s.logger.Error("Failed to list log files for retention", "error", err)
		return
	}
	for len(files) > s.maxFiles {
		if err := os.Remove(files[0]); err != nil {
			s.logger.Error("Failed to remove old log file", "path", files[0], "error", err)
		}
		files = files[1:]
	}
}

func isDayFile(name string) bool {
	day, ok := strings.CutSuffix(name, fileSuffix)
	if !ok {
		return false
	}
	_, err := time.Parse(dayLayout, day)
	return err == nil
}
