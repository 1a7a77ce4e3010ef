//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// CREATE_NEW_PROCESS_GROUP keeps console Ctrl+C events away from the monitor.
const createNewProcessGroup = 0x00000200

func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
