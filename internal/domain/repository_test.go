package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsPrefix(t *testing.T) {
	assert.Equal(t, "prod-eu.web-1-2", MetricsPrefix("prod.eu", "web.1.2"))
	assert.Equal(t, "staging.i0", MetricsPrefix("staging", "i0"))
}

func TestParseSeverity(t *testing.T) {
	for _, name := range []string{"verbose", "Debug", "INFORMATION", "info", "warning", "warn", "error", "fatal"} {
		_, err := ParseSeverity(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseSeverity("loud")
	assert.ErrorIs(t, err, ErrUnknownSeverity)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateNotStarted.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateStopped.Terminal())
	assert.True(t, StateCrashed.Terminal())
}
