package zorder

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

var currentGOOS = runtime.GOOS

// dropDelay is how long the raise-then-drop trick keeps the window raised
const dropDelay = 10 * time.Millisecond

// Fallback is the best-effort strategy available on every platform.
// It cannot guarantee bottom-of-stack placement.
type Fallback struct {
	mac      bool
	schedule func(d time.Duration, fn func())
	log      *zap.Logger
}

var _ Driver = (*Fallback)(nil)

// NewFallback creates the fallback strategy for goos
func NewFallback(goos string, schedule func(time.Duration, func()), log *zap.Logger) *Fallback {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{
		mac:      goos == "darwin",
		schedule: schedule,
		log:      log,
	}
}

// SendToBottom blurs the window, clears always-on-top and nudges the
// compositor into recomputing the stacking order.
func (f *Fallback) SendToBottom(_ context.Context, w overlay.Window) bool {
	if !live(w) {
		return false
	}

	if f.mac {
		w.SetVisibleOnAllWorkspaces(true)
		w.Blur()
		w.SetAlwaysOnTop(false)
		return true
	}

	w.Blur()
	w.SetAlwaysOnTop(false)
	// raise-then-drop: the restack forces the compositor to re-evaluate
	w.MoveTop()
	f.schedule(dropDelay, func() {
		if !w.IsDestroyed() {
			w.Blur()
		}
	})
	f.log.Debug("fallback send to bottom", zap.String("kind", string(w.Kind())))
	return true
}

// SetInputPassthrough toggles pointer passthrough
func (f *Fallback) SetInputPassthrough(w overlay.Window, enabled bool, opts PassthroughOptions) {
	setPassthrough(w, enabled, opts)
}
