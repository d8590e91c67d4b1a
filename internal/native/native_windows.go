//go:build windows

package native

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows constants for window styles and stacking
const (
	_GWL_EXSTYLE int32 = -20

	_WS_EX_TOPMOST     int32 = 0x00000008
	_WS_EX_TRANSPARENT int32 = 0x00000020
	_WS_EX_TOOLWINDOW  int32 = 0x00000080
	_WS_EX_APPWINDOW   int32 = 0x00040000
	_WS_EX_LAYERED     int32 = 0x00080000
	_WS_EX_NOACTIVATE  int32 = 0x08000000

	_SWP_NOSIZE         = 0x0001
	_SWP_NOMOVE         = 0x0002
	_SWP_NOACTIVATE     = 0x0010
	_SWP_FRAMECHANGED   = 0x0020
	_SWP_NOSENDCHANGING = 0x0400

	_WM_CLOSE = 0x0010

	_SM_CXSCREEN = 0
	_SM_CYSCREEN = 1
)

// special hWndInsertAfter values
var (
	_HWND_TOP       = uintptr(0)
	_HWND_BOTTOM    = uintptr(1)
	_HWND_TOPMOST   = ^uintptr(0) // -1
	_HWND_NOTOPMOST = ^uintptr(1) // -2
)

var (
	user32                  = windows.NewLazyDLL("user32.dll")
	procFindWindowW         = user32.NewProc("FindWindowW")
	procIsWindow            = user32.NewProc("IsWindow")
	procGetWindowLongW      = user32.NewProc("GetWindowLongW")
	procSetWindowLongW      = user32.NewProc("SetWindowLongW")
	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetShellWindow      = user32.NewProc("GetShellWindow")
	procPostMessageW        = user32.NewProc("PostMessageW")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
)

type win32 struct{}

// New returns the Win32 backend
func New() (Ops, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("failed to load user32: %w", err)
	}
	return win32{}, nil
}

func (win32) Find(title string) (uintptr, error) {
	ptr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(ptr)))
	if hwnd == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return hwnd, nil
}

func (win32) IsAlive(h uintptr) bool {
	ok, _, _ := procIsWindow.Call(h)
	return ok != 0
}

func exStyle(h uintptr) int32 {
	idx := _GWL_EXSTYLE
	style, _, _ := procGetWindowLongW.Call(h, uintptr(idx))
	return int32(style)
}

// updateExStyle sets and clears extended style bits, then lets the
// frame pick up the change.
func updateExStyle(h uintptr, set, clear int32) error {
	idx := _GWL_EXSTYLE
	cur := exStyle(h)
	next := (cur | set) &^ clear
	if next == cur {
		return nil
	}
	procSetWindowLongW.Call(h, uintptr(idx), uintptr(next))
	return setWindowPos(h, 0, _SWP_NOMOVE|_SWP_NOSIZE|_SWP_NOACTIVATE|_SWP_FRAMECHANGED)
}

func setWindowPos(h, insertAfter uintptr, flags uintptr) error {
	ok, _, err := procSetWindowPos.Call(h, insertAfter, 0, 0, 0, 0, flags)
	if ok == 0 {
		return fmt.Errorf("SetWindowPos: %w", err)
	}
	return nil
}

func (win32) SetFocusable(h uintptr, focusable bool) error {
	if focusable {
		return updateExStyle(h, 0, _WS_EX_NOACTIVATE)
	}
	return updateExStyle(h, _WS_EX_NOACTIVATE, 0)
}

func (win32) SetSkipTaskbar(h uintptr, skip bool) error {
	if skip {
		return updateExStyle(h, _WS_EX_TOOLWINDOW, _WS_EX_APPWINDOW)
	}
	return updateExStyle(h, _WS_EX_APPWINDOW, _WS_EX_TOOLWINDOW)
}

func (win32) SetAlwaysOnTop(h uintptr, onTop bool) error {
	after := _HWND_NOTOPMOST
	if onTop {
		after = _HWND_TOPMOST
	}
	return setWindowPos(h, after, _SWP_NOMOVE|_SWP_NOSIZE|_SWP_NOACTIVATE)
}

func (win32) IsAlwaysOnTop(h uintptr) (bool, error) {
	return exStyle(h)&_WS_EX_TOPMOST != 0, nil
}

func (win32) Foreground() (uintptr, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return 0, fmt.Errorf("no foreground window found")
	}
	return hwnd, nil
}

func (win32) Focus(h uintptr) error {
	ok, _, err := procSetForegroundWindow.Call(h)
	if ok == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}
	return nil
}

// Blur hands focus to the desktop shell if h holds it
func (w win32) Blur(h uintptr) error {
	fg, _ := w.Foreground()
	if fg != h {
		return nil
	}
	shell, _, _ := procGetShellWindow.Call()
	if shell == 0 {
		return nil
	}
	procSetForegroundWindow.Call(shell)
	return nil
}

func (win32) Raise(h uintptr) error {
	return setWindowPos(h, _HWND_TOP, _SWP_NOMOVE|_SWP_NOSIZE|_SWP_NOACTIVATE)
}

func (win32) Lower(h uintptr) error {
	return setWindowPos(h, _HWND_BOTTOM, _SWP_NOMOVE|_SWP_NOSIZE|_SWP_NOACTIVATE|_SWP_NOSENDCHANGING)
}

// SetInputPassthrough toggles WS_EX_TRANSPARENT so mouse events pass through the window
func (win32) SetInputPassthrough(h uintptr, enabled bool) error {
	if enabled {
		return updateExStyle(h, _WS_EX_LAYERED|_WS_EX_TRANSPARENT, 0)
	}
	return updateExStyle(h, _WS_EX_LAYERED, _WS_EX_TRANSPARENT)
}

// SetAllWorkspaces is a no-op: Win32 has no per-window virtual desktop pinning
func (win32) SetAllWorkspaces(uintptr, bool) error {
	return nil
}

func (win32) Close(h uintptr) error {
	ok, _, err := procPostMessageW.Call(h, _WM_CLOSE, 0, 0)
	if ok == 0 {
		return fmt.Errorf("PostMessageW: %w", err)
	}
	return nil
}

func (win32) DisplaySize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(_SM_CXSCREEN)
	h, _, _ := procGetSystemMetrics.Call(_SM_CYSCREEN)
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("GetSystemMetrics returned no screen size")
	}
	return int(w), int(h), nil
}
