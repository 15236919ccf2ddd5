package procscan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/elastic/go-sysinfo"
	"github.com/hashicorp/go-multierror"
)

// process is the subset of process details needed to match by name.
type process struct {
	pid  int
	name string
	exe  string
}

// Killer finds processes by executable name and kills them.
type Killer struct {
	logger *slog.Logger
	list   func() ([]process, error)
	kill   func(pid int) error
	self   int
}

// NewKiller creates a Killer backed by the host process table.
func NewKiller(logger *slog.Logger) *Killer {
	return &Killer{
		logger: logger.With("component", "process_killer"),
		list:   listProcesses,
		kill:   killProcess,
		self:   os.Getpid(),
	}
}

// KillByName kills every process whose name or executable base name equals
// name, ignoring a trailing ".exe" and case. The current process is never
// touched. A failure to kill one process is recorded and the sweep goes on.
func (k *Killer) KillByName(ctx context.Context, name string) (int, error) {
	procs, err := k.list()
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	var (
		killed int
		result *multierror.Error
	)
	for _, p := range procs {
		if ctx.Err() != nil {
			return killed, multierror.Append(result, ctx.Err()).ErrorOrNil()
		}
		if p.pid == k.self || !matches(p, name) {
			continue
		}
		if err := k.kill(p.pid); err != nil {
			k.logger.Warn("Failed to kill stale process", "pid", p.pid, "name", name, "error", err)
			result = multierror.Append(result, fmt.Errorf("kill pid %d: %w", p.pid, err))
			continue
		}
		k.logger.Info("Killed stale process", "pid", p.pid, "name", name)
		killed++
	}
	return killed, result.ErrorOrNil()
}

func matches(p process, name string) bool {
	want := normalize(name)
	if normalize(p.name) == want {
		return true
	}
	return p.exe != "" && normalize(filepath.Base(p.exe)) == want
}

func normalize(name string) string {
	name = strings.ToLower(name)
	return strings.TrimSuffix(name, ".exe")
}

func listProcesses() ([]process, error) {
	procs, err := sysinfo.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]process, 0, len(procs))
	for _, proc := range procs {
		info, err := proc.Info()
		if err != nil {
			// Expected for processes owned by other users.
			continue
		}
		out = append(out, process{pid: proc.PID(), name: info.Name, exe: info.Exe})
	}
	return out, nil
}

func killProcess(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
