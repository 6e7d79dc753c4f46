//go:build windows

package speech

import "os/exec"

// killProcessGroup is a no-op on Windows; WaitDelay still bounds Stop.
func killProcessGroup(cmd *exec.Cmd) {}
