package procscan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKiller(procs []process, failPID int) (*Killer, *[]int) {
	var killed []int
	k := &Killer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		list:   func() ([]process, error) { return procs, nil },
		kill: func(pid int) error {
			if pid == failPID {
				return errors.New("operation not permitted")
			}
			killed = append(killed, pid)
			return nil
		},
		self: 1,
	}
	return k, &killed
}

func TestKiller_KillByName(t *testing.T) {
	procs := []process{
		{pid: 1, name: "hekad", exe: "/tmp/hekad-bin/hekad"}, // self
		{pid: 10, name: "hekad", exe: "/tmp/hekad-bin/hekad"},
		{pid: 11, name: "bash", exe: "/bin/bash"},
		{pid: 12, name: "HEKAD.EXE", exe: `C:\tmp\hekad.exe`},
		{pid: 13, name: "truncated-comm", exe: "/opt/hekad"},
		{pid: 14, name: "hekadx", exe: "/opt/hekadx"},
	}

	t.Run("Kills matching processes except self", func(t *testing.T) {
		k, killed := newTestKiller(procs, 0)

		n, err := k.KillByName(context.Background(), "hekad")

		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.ElementsMatch(t, []int{10, 12, 13}, *killed)
	})

	t.Run("Continues after a failed kill", func(t *testing.T) {
		k, killed := newTestKiller(procs, 10)

		n, err := k.KillByName(context.Background(), "hekad")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "pid 10")
		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []int{12, 13}, *killed)
	})

	t.Run("Listing failure is returned", func(t *testing.T) {
		k, _ := newTestKiller(nil, 0)
		k.list = func() ([]process, error) { return nil, errors.New("no /proc") }

		n, err := k.KillByName(context.Background(), "hekad")

		require.Error(t, err)
		assert.Zero(t, n)
	})
}
