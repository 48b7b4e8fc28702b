// Package procgroup wraps the process-group launch and kill-group mechanics
// the Child supervisor uses to reap an executor tool's descendants. It is
// built on golang.org/x/sys/unix, so it targets Unix-like platforms only.
// Kill signals just the single process when the child was not launched with
// Detach or its process group cannot be looked up.
package procgroup

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// Detach configures cmd to become its own process-group leader, so a
// subsequent Kill can signal the whole group by negative pid. Used for
// executor-tool invocations, which may spawn descendants.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
}

// Kill signals cmd's process group (if it was launched with Detach) or the
// single process otherwise. ESRCH (already exited) is not an error: the
// child may have exited between the caller observing it as alive and this
// call landing.
func Kill(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	target := pid
	if cmd.SysProcAttr != nil && cmd.SysProcAttr.Setpgid {
		if pgid, err := unix.Getpgid(pid); err == nil {
			target = -pgid
		}
	}
	if err := unix.Kill(target, sig); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}
