//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// isolateProcess starts the child in its own process group and makes
// cancellation kill the whole group, so grandchildren cannot keep the
// output pipes open.
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
