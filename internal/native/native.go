// Package native exposes the window-manager primitives overlay windows need,
// addressed by OS handle: an HWND on Windows, an X11 window id elsewhere.
package native

import "errors"

var (
	// ErrUnsupported is returned on platforms without a native backend
	ErrUnsupported = errors.New("native window operations not supported on this platform")
	// ErrNotFound is returned when no window carries the requested title
	ErrNotFound = errors.New("window not found")
)

// Ops is one platform's window-property backend
type Ops interface {
	// Find returns the handle of the top-level window titled exactly title.
	Find(title string) (uintptr, error)
	IsAlive(h uintptr) bool

	SetFocusable(h uintptr, focusable bool) error
	SetSkipTaskbar(h uintptr, skip bool) error
	SetAlwaysOnTop(h uintptr, onTop bool) error
	IsAlwaysOnTop(h uintptr) (bool, error)
	// Foreground returns the window holding keyboard focus.
	Foreground() (uintptr, error)
	Focus(h uintptr) error
	Blur(h uintptr) error
	Raise(h uintptr) error
	Lower(h uintptr) error
	SetInputPassthrough(h uintptr, enabled bool) error
	SetAllWorkspaces(h uintptr, all bool) error
	Close(h uintptr) error

	// DisplaySize returns the primary display bounds.
	DisplaySize() (width, height int, err error)
}
