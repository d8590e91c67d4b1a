//go:build !windows && !linux && !freebsd && !openbsd && !netbsd

package hotkey

import "go.uber.org/zap"

// Register reports that global hotkeys are unavailable; the control window
// still toggles edit mode.
func Register(Accelerator, func(), *zap.Logger) (Hotkey, error) {
	return nil, ErrUnsupported
}
