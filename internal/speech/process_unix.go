//go:build !windows

package speech

import (
	"os/exec"
	"syscall"
)

// killProcessGroup runs cmd in its own process group so that a stop also
// reaches recorders started by wrapper scripts
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
