//go:build !windows

// Package procgroup puts subprocesses in their own process group, so the
// ffmpeg encoders and grabbers do not receive the terminal's Ctrl-C
// directly; the recorder shuts them down itself in teardown order.
package procgroup

import (
	"os/exec"
	"syscall"
)

func SetProcGrp(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
