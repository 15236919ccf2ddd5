//go:build windows

package usecase

import (
	"os"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}

// Console interrupts cannot be delivered to a windowless child.
func interrupt(p *os.Process) error {
	return p.Kill()
}
