// Package desktop keeps overlay windows at desktop level: below normal
// application windows, out of the taskbar and transparent to input while
// the desktop is in passive mode.
package desktop

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/mode"
	"desk-overlay/internal/overlay"
	"desk-overlay/internal/zorder"
)

// Options tunes the controller
type Options struct {
	// RaiseOnEdit sets always-on-top while a window is released for editing.
	RaiseOnEdit bool
	// LowerTimeout bounds one asynchronous SendToBottom.
	LowerTimeout time.Duration
}

// Controller is the only writer of the passive-mode property combination
type Controller struct {
	mode   mode.Reader
	driver zorder.Driver
	opts   Options
	log    *zap.Logger

	wg sync.WaitGroup
}

var _ mode.Controller = (*Controller)(nil)

// New creates a controller reading the global mode from r
func New(r mode.Reader, driver zorder.Driver, opts Options, log *zap.Logger) *Controller {
	if opts.LowerTimeout <= 0 {
		opts.LowerTimeout = zorder.DefaultHelperTimeout + time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		mode:   r,
		driver: driver,
		opts:   opts,
		log:    log.Named("desktop"),
	}
}

// Pin asserts the passive-mode invariant on w. Calling it repeatedly is safe.
//
// Input passthrough and non-focusability are only applied in Desktop mode,
// so a pin racing with an edit session never locks the user out.
func (c *Controller) Pin(w overlay.Window) {
	if w == nil || w.IsDestroyed() {
		return
	}

	w.SetSkipTaskbar(true)
	w.SetAlwaysOnTop(false)
	w.Blur()

	if c.mode.Current() != mode.Desktop {
		return
	}
	w.SetFocusable(false)
	c.driver.SetInputPassthrough(w, true, zorder.PassthroughOptions{Forward: true})
}

// Release makes w interactive for the current edit session
func (c *Controller) Release(w overlay.Window) {
	if w == nil || w.IsDestroyed() {
		return
	}

	c.driver.SetInputPassthrough(w, false, zorder.PassthroughOptions{})
	w.SetFocusable(true)
	w.SetAlwaysOnTop(c.opts.RaiseOnEdit)
	w.Focus()
}

// Unlock makes w interactive like Release but leaves focus and stacking
// alone, for widgets that follow Main into an edit session.
func (c *Controller) Unlock(w overlay.Window) {
	if w == nil || w.IsDestroyed() {
		return
	}
	c.driver.SetInputPassthrough(w, false, zorder.PassthroughOptions{})
	w.SetFocusable(true)
}

// Lower pushes w to the bottom of the stacking order without blocking the
// caller. The driver may spawn a helper process.
func (c *Controller) Lower(w overlay.Window) {
	if w == nil || w.IsDestroyed() {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.LowerTimeout)
		defer cancel()

		start := time.Now()
		ok := c.driver.SendToBottom(ctx, w)
		c.log.Debug("lowered window",
			zap.String("kind", string(w.Kind())),
			zap.Bool("ok", ok),
			zap.Duration("took", time.Since(start)))
	}()
}

// Wait blocks until every pending Lower has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}
