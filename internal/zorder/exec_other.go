//go:build !windows

package zorder

import "os/exec"

// hideConsole is a no-op on non-Windows platforms
func hideConsole(cmd *exec.Cmd) {}
