//go:build !windows

package worker

import (
	"fmt"
	"os/exec"
	"syscall"
)

// configureProcAttr runs the daemon as leader of its own process group.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func signalTerminate(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func signalKill(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

// signalGroup signals the whole process group, falling back to the single
// process when the group is gone.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil {
			if err2 == syscall.ESRCH {
				return nil
			}
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %v", pid, err, pid, err2)
		}
	}
	return nil
}
