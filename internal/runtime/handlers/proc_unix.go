//go:build !windows

package handlers

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// shellCommand builds the command line for a shell button.
func shellCommand(command string) (string, []string) {
	return "/bin/sh", []string{"-c", command}
}

func pingArgs(count int, host string) []string {
	return []string{"-c", strconv.Itoa(count), host}
}

// isolate puts the child in its own process group so termination reaches
// anything it spawned.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the child's process group to exit.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	return nil
}
