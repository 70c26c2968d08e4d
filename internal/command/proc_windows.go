//go:build windows

package command

import "os/exec"

// Windows has no process groups in the POSIX sense; the direct child is
// killed and descendants are left to the OS.
func setProcGroup(cmd *exec.Cmd) {}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
}
