package zorder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// Runner starts a helper process and waits for it to exit
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs helpers with os/exec. The process is killed when ctx ends.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	hideConsole(cmd)
	return cmd.Run()
}

// Helper describes the external program that performs the restack
type Helper struct {
	// Binary is the path of the sendtobottom helper. Empty selects the
	// PowerShell script.
	Binary string
}

// Win32 type definition loaded by the PowerShell helper
const win32TypeDefinition = `
Add-Type @"
using System;
using System.Runtime.InteropServices;
public class Win32 {
    public const int HWND_BOTTOM = 1;
    public const int HWND_NOTOPMOST = -2;
    public const uint SWP_NOSIZE = 0x0001;
    public const uint SWP_NOMOVE = 0x0002;
    public const uint SWP_NOACTIVATE = 0x0010;
    public const uint SWP_NOSENDCHANGING = 0x0400;

    [DllImport("user32.dll")]
    public static extern bool SetWindowPos(IntPtr hWnd, int hWndInsertAfter, int X, int Y, int cx, int cy, uint uFlags);
}
"@;
`

// Command returns the program and arguments that restack handle
func (h Helper) Command(handle uintptr) (string, []string) {
	if h.Binary != "" {
		return h.Binary, []string{fmt.Sprintf("%x", handle)}
	}

	script := win32TypeDefinition + fmt.Sprintf(`
$hwnd = [IntPtr]%d;
$flags = [Win32]::SWP_NOMOVE -bor [Win32]::SWP_NOSIZE -bor [Win32]::SWP_NOACTIVATE -bor [Win32]::SWP_NOSENDCHANGING;
[void][Win32]::SetWindowPos($hwnd, [Win32]::HWND_NOTOPMOST, 0, 0, 0, 0, $flags);
if (-not [Win32]::SetWindowPos($hwnd, [Win32]::HWND_BOTTOM, 0, 0, 0, 0, $flags)) { exit 3 }`, handle)

	return "powershell", []string{
		"-NoProfile",
		"-ExecutionPolicy", "Bypass",
		"-WindowStyle", "Hidden",
		"-Command", script,
	}
}

// Scripted restacks windows through a short-lived helper process.
// Each call spawns a process, so callers keep it off hot paths.
type Scripted struct {
	runner   Runner
	helper   Helper
	timeout  time.Duration
	fallback *Fallback
	log      *zap.Logger
}

var _ Driver = (*Scripted)(nil)

// NewScripted creates the helper-process strategy
func NewScripted(runner Runner, helper Helper, timeout time.Duration, fallback *Fallback, log *zap.Logger) *Scripted {
	if timeout <= 0 {
		timeout = DefaultHelperTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scripted{
		runner:   runner,
		helper:   helper,
		timeout:  timeout,
		fallback: fallback,
		log:      log,
	}
}

// SendToBottom implements Driver
func (s *Scripted) SendToBottom(ctx context.Context, w overlay.Window) bool {
	if !live(w) {
		return false
	}
	kind := zap.String("kind", string(w.Kind()))

	handle, err := w.NativeHandle()
	if err != nil || handle == 0 {
		s.log.Warn("native handle unavailable, using fallback", kind, zap.Error(err))
		return s.fallback.SendToBottom(ctx, w)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, args := s.helper.Command(handle)
	err = s.runner.Run(runCtx, name, args...)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		s.log.Warn("z-order helper timed out, using fallback", kind, zap.Duration("timeout", s.timeout))
		return s.fallback.SendToBottom(ctx, w)
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.log.Warn("z-order helper failed, using fallback", kind, zap.Int("exit_code", exitErr.ExitCode()))
		} else {
			s.log.Warn("z-order helper could not start, using fallback", kind, zap.Error(err))
		}
		return s.fallback.SendToBottom(ctx, w)
	}

	s.log.Debug("sent to bottom", kind, zap.String("helper", name))
	return true
}

// SetInputPassthrough implements Driver
func (s *Scripted) SetInputPassthrough(w overlay.Window, enabled bool, opts PassthroughOptions) {
	setPassthrough(w, enabled, opts)
}
