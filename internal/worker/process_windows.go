//go:build windows

package worker

import (
	"fmt"
	"os/exec"
	"syscall"
)

const (
	processTerminate        = 0x0001
	processQueryInformation = 0x0400
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// Windows has no SIGTERM equivalent for console-less children; both stop
// paths terminate the process.
func signalTerminate(pid int) error {
	return terminateProcess(pid)
}

func signalKill(pid int) error {
	return terminateProcess(pid)
}

func terminateProcess(pid int) error {
	handle, _, err := procOpenProcess.Call(
		uintptr(processTerminate|processQueryInformation),
		uintptr(0),
		uintptr(pid),
	)
	if handle == 0 {
		return fmt.Errorf("failed to open process %d: %v", pid, err)
	}
	defer procCloseHandle.Call(handle)

	success, _, err := procTerminateProcess.Call(handle, uintptr(1))
	if success == 0 {
		return fmt.Errorf("failed to terminate process %d: %v", pid, err)
	}
	return nil
}
