package domain

import "time"

// State is the lifecycle state of a supervised daemon.
type State string

const (
	StateNotStarted State = "not_started"
	StateStaging    State = "staging"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateCrashed    State = "crashed"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCrashed
}

// Credentials is the TLS material handed to the daemon, already decoded.
type Credentials struct {
	CertificateAuthority string
	Certificate          string
	PrivateKey           string
}

// Identity names the deployment and instance the daemon reports for.
type Identity struct {
	Deployment string
	Instance   string
}

// ProcessStatus is a point-in-time view of a supervised daemon.
type ProcessStatus struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"process_name"`
	State      State     `json:"state"`
	PID        int       `json:"pid,omitempty"`
	WorkingDir string    `json:"working_dir"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	LastOutput []string  `json:"last_output"`
}

// CrashReport describes a daemon run that ended without being asked to.
type CrashReport struct {
	RunID       string
	ProcessName string
	ExitCode    int
	State       State
	Detail      string
	LastOutput  []string
	OccurredAt  time.Time
}
