//go:build windows

package zorder

import (
	"os/exec"
	"syscall"
)

// hideConsole keeps the helper from flashing a console window
func hideConsole(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
