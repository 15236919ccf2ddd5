package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the semantic level of a host application log event.
type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityDebug
	SeverityInformation
	SeverityWarning
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{
	SeverityVerbose:     "verbose",
	SeverityDebug:       "debug",
	SeverityInformation: "information",
	SeverityWarning:     "warning",
	SeverityError:       "error",
	SeverityFatal:       "fatal",
}

func (s Severity) String() string {
	if s < SeverityVerbose || s > SeverityFatal {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts the severity names case-insensitively, plus the
// short forms "info" and "warn".
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "verbose", "trace":
		return SeverityVerbose, nil
	case "debug":
		return SeverityDebug, nil
	case "information", "info":
		return SeverityInformation, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "fatal":
		return SeverityFatal, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

// Failure is the error attached to a log event, if any.
type Failure struct {
	Source     string
	Message    string
	StackTrace string
}

// LogEvent is one structured event produced by the host application's
// logging pipeline. The message is already rendered.
type LogEvent struct {
	Timestamp       time.Time
	Level           Severity
	MessageTemplate string
	Message         string
	Properties      map[string]any
	Failure         *Failure
}
