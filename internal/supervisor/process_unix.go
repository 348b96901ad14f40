//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setDetached puts the child in its own process group so that terminating
// the gateway doesn't take gemini_bridge down with it, and so Stop can
// signal the whole group.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// terminate sends SIGTERM to the process group.
func terminate(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}
