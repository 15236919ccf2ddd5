package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/domain"
	"github.com/V4T54L/hekad-gateway/internal/pkg/logger"
	"github.com/V4T54L/hekad-gateway/internal/pkg/ringbuffer"
)

const (
	DefaultProcessName = "hekad"
	DefaultGracePeriod = 5 * time.Second

	statLaunch = "hekad.launch"
	statCrash  = "hekad.crash"

	crashSaveTimeout = 10 * time.Second
	maxLineSize      = 1024 * 1024
)

// ExecutableName returns the daemon's file name on the current platform.
func ExecutableName(processName string) string {
	if runtime.GOOS == "windows" {
		return processName + ".exe"
	}
	return processName
}

// SupervisorConfig holds the fixed parameters of a supervisor.
type SupervisorConfig struct {
	ProcessName string
	// GracePeriod is how long an interrupted daemon may take to exit
	// before it is killed.
	GracePeriod time.Duration
	// OutputLogRate caps daemon lines per second mirrored into the host
	// log at debug. Zero disables mirroring.
	OutputLogRate float64
	BufferSize    int
}

// LaunchRequest carries everything a single daemon run needs.
type LaunchRequest struct {
	WorkingDir  string
	LogDir      string
	ServerURL   string
	Identity    domain.Identity
	Credentials domain.Credentials
	// MetricsSink is completed with the identity prefix before use.
	MetricsSink domain.MetricsSinkConfig
}

// Supervisor owns one daemon run from preflight to exit.
type Supervisor struct {
	cfg      SupervisorConfig
	stager   *Stager
	killer   domain.ProcessKiller
	sinkConf domain.MetricsConfigurer
	crashes  domain.CrashRepository
	logger   *slog.Logger
	metrics  *metrics.GatewayMetrics
	output   *ringbuffer.Lines
	mirror   *rate.Limiter

	mu         sync.Mutex
	state      domain.State
	runID      string
	pid        int
	workingDir string
	startedAt  time.Time
	counter    domain.Counter
	cancel     context.CancelFunc
	terminated bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewSupervisor creates a supervisor in the not_started state. crashes may be nil.
func NewSupervisor(
	cfg SupervisorConfig,
	stager *Stager,
	killer domain.ProcessKiller,
	sinkConf domain.MetricsConfigurer,
	crashes domain.CrashRepository,
	logger *slog.Logger,
	m *metrics.GatewayMetrics,
) *Supervisor {
	if cfg.ProcessName == "" {
		cfg.ProcessName = DefaultProcessName
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	var mirror *rate.Limiter
	if cfg.OutputLogRate > 0 {
		burst := int(cfg.OutputLogRate)
		if burst < 1 {
			burst = 1
		}
		mirror = rate.NewLimiter(rate.Limit(cfg.OutputLogRate), burst)
	}

	return &Supervisor{
		cfg:      cfg,
		stager:   stager,
		killer:   killer,
		sinkConf: sinkConf,
		crashes:  crashes,
		logger:   logger.With("component", "supervisor", "process", cfg.ProcessName),
		metrics:  m,
		output:   ringbuffer.New(cfg.BufferSize),
		mirror:   mirror,
		state:    domain.StateNotStarted,
		counter:  noopCounter{},
		done:     make(chan struct{}),
	}
}

// ConfigureAndLaunch clears stale daemon instances, configures the metrics
// sink, stages the working directory and spawns the daemon. It returns once
// the daemon has started; the daemon's lifetime is supervised in the
// background and does not depend on ctx. Staging and spawn failures are
// returned, and a failed staging never spawns anything.
func (s *Supervisor) ConfigureAndLaunch(ctx context.Context, req LaunchRequest) error {
	s.mu.Lock()
	if s.state != domain.StateNotStarted {
		s.mu.Unlock()
		return domain.ErrAlreadyLaunched
	}
	s.state = domain.StateStaging
	s.runID = uuid.NewString()
	s.workingDir = req.WorkingDir
	s.mu.Unlock()

	s.logger.Info("Launching daemon", "run_id", s.runID, "working_dir", req.WorkingDir)

	s.preflight(ctx)
	s.configureMetricsSink(req)

	configPath, err := s.stager.Prepare(req.WorkingDir, req.Credentials, Substitutions{
		WorkingDir: req.WorkingDir,
		LogDir:     req.LogDir,
		ServerURL:  req.ServerURL,
	})
	if err != nil {
		s.logger.Log(ctx, logger.LevelFatal, "Failed to stage daemon", "error", err)
		s.finish(domain.StateCrashed)
		return fmt.Errorf("staging failed: %w", err)
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		s.finish(domain.StateStopped)
		return domain.ErrTerminated
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	started := make(chan error, 1)
	go s.supervise(runCtx, req.WorkingDir, filepath.Base(configPath), started)
	return <-started
}

// Terminate stops the daemon: it is interrupted, then killed after the
// grace period. It does not wait for supervision to unwind; use Done for
// that. Calling it more than once, or before launch, is harmless.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	s.terminated = true
	cancel := s.cancel
	notStarted := s.state == domain.StateNotStarted
	s.mu.Unlock()

	if cancel != nil {
		s.logger.Info("Terminating daemon")
		cancel()
		return
	}
	if notStarted {
		s.finish(domain.StateStopped)
	}
}

// Done is closed once the supervisor reaches a terminal state.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Status returns a point-in-time view of the supervised daemon.
func (s *Supervisor) Status() domain.ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ProcessStatus{
		RunID:      s.runID,
		Name:       s.cfg.ProcessName,
		State:      s.state,
		PID:        s.pid,
		WorkingDir: s.workingDir,
		StartedAt:  s.startedAt,
		LastOutput: s.output.Snapshot(),
	}
}

func (s *Supervisor) preflight(ctx context.Context) {
	killed, err := s.killer.KillByName(ctx, s.cfg.ProcessName)
	if err != nil {
		s.logger.Warn("Failed to kill some stale daemon instances", "error", err)
	}
	if killed > 0 {
		s.logger.Info("Killed stale daemon instances", "count", killed)
		if s.metrics != nil {
			s.metrics.StaleKilled.Add(float64(killed))
		}
	}
}

func (s *Supervisor) configureMetricsSink(req LaunchRequest) {
	cfg := req.MetricsSink
	cfg.Prefix = domain.MetricsPrefix(req.Identity.Deployment, req.Identity.Instance)

	counter, err := s.sinkConf.Configure(cfg)
	if err != nil {
		s.logger.Warn("Failed to configure metrics sink", "error", err, "server", cfg.ServerName, "port", cfg.ServerPort)
		return
	}
	s.mu.Lock()
	s.counter = counter
	s.mu.Unlock()
}

// supervise runs the daemon to completion. The spawn result is sent on
// started exactly once.
func (s *Supervisor) supervise(ctx context.Context, workingDir, configName string, started chan<- error) {
	cmd := exec.CommandContext(ctx, filepath.Join(workingDir, ExecutableName(s.cfg.ProcessName)), "--config="+configName)
	cmd.Dir = workingDir
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = s.cfg.GracePeriod
	hideWindow(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.spawnFailed(err, started)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.spawnFailed(err, started)
		return
	}
	if err := cmd.Start(); err != nil {
		s.spawnFailed(err, started)
		return
	}

	s.mu.Lock()
	s.state = domain.StateRunning
	s.pid = cmd.Process.Pid
	s.startedAt = time.Now().UTC()
	counter := s.counter
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Launches.Inc()
		s.metrics.DaemonUp.Set(1)
	}
	if err := counter.Inc(statLaunch, 1); err != nil {
		s.logger.Debug("Failed to push launch counter", "error", err)
	}
	s.logger.Info("Daemon started", "pid", cmd.Process.Pid)
	started <- nil

	var g errgroup.Group
	g.Go(func() error { return s.drain(ctx, "stdout", stdout) })
	g.Go(func() error { return s.drain(ctx, "stderr", stderr) })
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	if s.metrics != nil {
		s.metrics.DaemonUp.Set(0)
	}

	if cmd.ProcessState == nil {
		// Wait returned without observing an exit.
		if err := cmd.Process.Kill(); err != nil {
			s.logger.Warn("Failed to kill daemon", "error", err)
		}
	}

	if s.wasTerminated() {
		s.logger.Info("Daemon stopped", "exit_code", exitCode(cmd))
		s.finish(domain.StateStopped)
		return
	}

	s.reportCrash(exitCode(cmd), errors.Join(waitErr, drainErr))
}

func (s *Supervisor) spawnFailed(err error, started chan<- error) {
	err = fmt.Errorf("failed to start daemon: %w", err)
	started <- err
	s.logger.Log(context.Background(), logger.LevelFatal, "Failed to supervise daemon", "error", err)
	s.report(-1, err)
	s.finish(domain.StateCrashed)
}

// drain appends every line of r to the output buffer and marks the end of
// the stream with an empty line.
func (s *Supervisor) drain(ctx context.Context, stream string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		s.output.Append(line)
		if s.metrics != nil {
			s.metrics.OutputLines.WithLabelValues(stream).Inc()
		}
		if ctx.Err() == nil && s.mirror != nil && s.mirror.Allow() {
			s.logger.Debug(line, "stream", stream)
		}
	}
	s.output.Append("")
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("failed to read daemon %s: %w", stream, err)
	}
	return nil
}

// reportCrash handles any exit the supervisor did not ask for. The daemon
// is expected to run until terminated, so exit code 0 is a crash too.
func (s *Supervisor) reportCrash(code int, err error) {
	s.logger.Log(context.Background(), logger.LevelFatal, "Process terminated", "exit_code", code, "error", err)
	s.logger.Info("Last daemon output", "output", strings.Join(s.output.Snapshot(), "\n"))
	s.report(code, err)
	s.finish(domain.StateCrashed)
}

// report persists a crash and pushes the crash counter. Failures are logged only.
func (s *Supervisor) report(code int, err error) {
	s.mu.Lock()
	counter := s.counter
	runID := s.runID
	s.mu.Unlock()

	if incErr := counter.Inc(statCrash, 1); incErr != nil {
		s.logger.Debug("Failed to push crash counter", "error", incErr)
	}
	if s.crashes == nil {
		return
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), crashSaveTimeout)
	defer cancel()
	saveErr := s.crashes.SaveCrash(ctx, domain.CrashReport{
		RunID:       runID,
		ProcessName: s.cfg.ProcessName,
		ExitCode:    code,
		State:       domain.StateCrashed,
		Detail:      detail,
		LastOutput:  s.output.Snapshot(),
		OccurredAt:  time.Now().UTC(),
	})
	if saveErr != nil {
		s.logger.Error("Failed to save crash report", "error", saveErr, "run_id", runID)
	}
}

func (s *Supervisor) wasTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *Supervisor) finish(state domain.State) {
	s.mu.Lock()
	s.state = state
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.metrics != nil && state.Terminal() {
		s.metrics.Exits.WithLabelValues(string(state)).Inc()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

type noopCounter struct{}

func (noopCounter) Inc(string, int64) error { return nil }
