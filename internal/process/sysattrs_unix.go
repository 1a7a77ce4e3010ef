//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the monitor in its own process group so that
// wrappers such as npx are signalled together with the real server.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
