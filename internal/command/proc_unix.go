//go:build !windows

package command

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so a timeout kill
// reaches its descendants, not just the leading process.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the child's whole process group.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
