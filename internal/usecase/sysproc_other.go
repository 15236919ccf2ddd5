//go:build !windows

package usecase

import (
	"os"
	"os/exec"
)

func hideWindow(*exec.Cmd) {}

func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
