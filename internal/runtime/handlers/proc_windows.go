//go:build windows

package handlers

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}

func pingArgs(count int, host string) []string {
	return []string{"-n", strconv.Itoa(count), host}
}

func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// Windows has no SIGTERM; the process is killed outright.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
