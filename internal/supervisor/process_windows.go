//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setDetached spawns the child in its own process group
// (CREATE_NEW_PROCESS_GROUP); it does not get a new console.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminate asks the process to exit. Windows has no SIGTERM equivalent
// for arbitrary processes, so this calls Process.Kill and relies on the
// caller's grace-period/Wait loop; there is no softer stop available
// without sending a console event, which requires the child to be
// attached to our console group.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
