//go:build !windows

package process

import "syscall"

// terminateGroup sends SIGTERM to the process group led by pid.
func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to the process group led by pid.
func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// processExists checks if a process exists (for tests)
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
