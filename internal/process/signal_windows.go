//go:build windows

package process

import "os"

// Windows has no SIGTERM; both stages terminate the process.
func terminateGroup(pid int) error { return killGroup(pid) }

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

func processExists(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
