// Package window implements overlay.Window on top of a UI surface and the
// platform's native window primitives.
package window

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"desk-overlay/internal/native"
	"desk-overlay/internal/overlay"
)

// Surface renders the UI layer of one window
type Surface interface {
	Send(channel string, payload interface{}) error
	SetPosition(pos overlay.Position) error
	SetSize(size overlay.Size) error
	SetAlwaysOnTop(onTop bool) error
	Show() error
	Hide() error
	Close() error
	// Done is closed once the surface is gone.
	Done() <-chan struct{}
}

// Window is an overlay window. Flags are mirrored in memory and applied
// natively once the window's handle can be resolved by title.
type Window struct {
	id      string
	desc    overlay.Descriptor
	ops     native.Ops
	surface Surface
	log     *zap.Logger

	mu        sync.Mutex
	handle    uintptr
	destroyed bool
	flags     overlay.Flags
	pos       overlay.Position
	size      overlay.Size
	visible   bool
	forward   bool
	allSpaces bool
	focused   bool
}

// New wraps surface as the window described by desc. ops may be nil on
// platforms without a native backend.
func New(desc overlay.Descriptor, ops native.Ops, surface Surface, pos overlay.Position, size overlay.Size, log *zap.Logger) *Window {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Window{
		id:      id,
		desc:    desc,
		ops:     ops,
		surface: surface,
		log:     log.Named("window").With(zap.String("kind", string(desc.Kind)), zap.String("id", id)),
		flags:   overlay.Flags{Focusable: true},
		pos:     pos,
		size:    size,
		visible: true,
	}
}

// Watch calls gone once the surface goes away on its own
func (w *Window) Watch(gone func(kind overlay.Kind)) {
	go func() {
		<-w.surface.Done()
		w.mu.Lock()
		already := w.destroyed
		w.destroyed = true
		w.focused = false
		w.mu.Unlock()
		if !already && gone != nil {
			gone(w.desc.Kind)
		}
	}()
}

func (w *Window) ID() string         { return w.id }
func (w *Window) Kind() overlay.Kind { return w.desc.Kind }

// Descriptor returns the policy the window was created with
func (w *Window) Descriptor() overlay.Descriptor { return w.desc }

func (w *Window) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *Window) NativeHandle() (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return 0, fmt.Errorf("%s window destroyed", w.desc.Kind)
	}
	return w.resolveLocked()
}

// resolveLocked returns the cached handle or looks it up by title. A newly
// found handle gets every cached flag applied.
func (w *Window) resolveLocked() (uintptr, error) {
	if w.ops == nil {
		return 0, native.ErrUnsupported
	}
	if w.handle != 0 {
		if w.ops.IsAlive(w.handle) {
			return w.handle, nil
		}
		w.handle = 0
	}

	h, err := w.ops.Find(w.desc.Title)
	if err != nil {
		return 0, err
	}
	w.handle = h
	w.log.Debug("native handle resolved", zap.Uintptr("handle", h))
	w.applyAllLocked(h)
	return h, nil
}

func (w *Window) applyAllLocked(h uintptr) {
	w.check("SetFocusable", w.ops.SetFocusable(h, w.flags.Focusable))
	w.check("SetSkipTaskbar", w.ops.SetSkipTaskbar(h, w.flags.SkipTaskbar))
	w.check("SetAlwaysOnTop", w.ops.SetAlwaysOnTop(h, w.flags.AlwaysOnTop))
	w.check("SetInputPassthrough", w.ops.SetInputPassthrough(h, w.flags.InputPassthrough))
	if w.allSpaces {
		w.check("SetAllWorkspaces", w.ops.SetAllWorkspaces(h, true))
	}
}

func (w *Window) check(op string, err error) {
	if err != nil {
		w.log.Debug("native operation failed", zap.String("op", op), zap.Error(err))
	}
}

// withNative runs fn against the resolved handle. It reports false when
// the window is destroyed; an unresolvable handle only skips fn.
func (w *Window) withNative(op string, update func(), fn func(h uintptr) error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return false
	}
	if update != nil {
		update()
	}
	h, err := w.resolveLocked()
	if err != nil {
		if !errors.Is(err, native.ErrUnsupported) {
			w.log.Debug("native handle unavailable", zap.String("op", op), zap.Error(err))
		}
		return true
	}
	if fn != nil {
		w.check(op, fn(h))
	}
	return true
}

// Sync resolves the native handle and applies every cached flag
func (w *Window) Sync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return
	}
	if h, err := w.resolveLocked(); err == nil {
		w.applyAllLocked(h)
	}
}

func (w *Window) SetFocusable(focusable bool) {
	w.withNative("SetFocusable", func() { w.flags.Focusable = focusable }, func(h uintptr) error {
		return w.ops.SetFocusable(h, focusable)
	})
}

func (w *Window) SetSkipTaskbar(skip bool) {
	w.withNative("SetSkipTaskbar", func() { w.flags.SkipTaskbar = skip }, func(h uintptr) error {
		return w.ops.SetSkipTaskbar(h, skip)
	})
}

func (w *Window) SetAlwaysOnTop(onTop bool) {
	nativeOK := false
	live := w.withNative("SetAlwaysOnTop", func() { w.flags.AlwaysOnTop = onTop }, func(h uintptr) error {
		nativeOK = true
		return w.ops.SetAlwaysOnTop(h, onTop)
	})
	if live && !nativeOK {
		w.surfaceErr("SetAlwaysOnTop", w.surface.SetAlwaysOnTop(onTop))
	}
}

func (w *Window) IsAlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return false
	}
	if w.ops != nil && w.handle != 0 {
		if onTop, err := w.ops.IsAlwaysOnTop(w.handle); err == nil {
			w.flags.AlwaysOnTop = onTop
		}
	}
	return w.flags.AlwaysOnTop
}

// IsFocused asks the window manager when possible and falls back to the
// last focus report from the UI layer.
func (w *Window) IsFocused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return false
	}
	if w.ops != nil && w.handle != 0 {
		if fg, err := w.ops.Foreground(); err == nil {
			w.focused = fg == w.handle
		}
	}
	return w.focused
}

// SetFocused records a focus report from the UI layer
func (w *Window) SetFocused(focused bool) {
	w.mu.Lock()
	if !w.destroyed {
		w.focused = focused
	}
	w.mu.Unlock()
}

func (w *Window) Focus() {
	w.withNative("Focus", func() { w.focused = true }, func(h uintptr) error {
		return w.ops.Focus(h)
	})
}

func (w *Window) Blur() {
	w.withNative("Blur", func() { w.focused = false }, func(h uintptr) error {
		return w.ops.Blur(h)
	})
}

func (w *Window) MoveTop() {
	w.withNative("MoveTop", nil, func(h uintptr) error {
		return w.ops.Raise(h)
	})
}

func (w *Window) SetIgnoreMouseEvents(ignore bool, forward bool) {
	w.withNative("SetInputPassthrough", func() {
		w.flags.InputPassthrough = ignore
		w.forward = ignore && forward
	}, func(h uintptr) error {
		return w.ops.SetInputPassthrough(h, ignore)
	})
}

func (w *Window) SetVisibleOnAllWorkspaces(visible bool) {
	w.withNative("SetAllWorkspaces", func() { w.allSpaces = visible }, func(h uintptr) error {
		return w.ops.SetAllWorkspaces(h, visible)
	})
}

// live runs update under the lock and reports whether the window is alive
func (w *Window) live(update func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return false
	}
	if update != nil {
		update()
	}
	return true
}

func (w *Window) surfaceErr(op string, err error) {
	if err != nil {
		w.log.Warn("surface operation failed", zap.String("op", op), zap.Error(err))
	}
}

func (w *Window) Show() {
	if w.live(func() { w.visible = true }) {
		w.surfaceErr("Show", w.surface.Show())
	}
}

func (w *Window) Hide() {
	if w.live(func() { w.visible = false }) {
		w.surfaceErr("Hide", w.surface.Hide())
	}
}

func (w *Window) Position() overlay.Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *Window) SetPosition(pos overlay.Position) {
	if w.live(func() { w.pos = pos }) {
		w.surfaceErr("SetPosition", w.surface.SetPosition(pos))
	}
}

// Moved records a position reported by the UI layer
func (w *Window) Moved(pos overlay.Position) {
	w.live(func() { w.pos = pos })
}

func (w *Window) SetContentSize(size overlay.Size) {
	if w.live(func() { w.size = size }) {
		w.surfaceErr("SetSize", w.surface.SetSize(size))
	}
}

func (w *Window) Close() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.focused = false
	w.mu.Unlock()

	w.surfaceErr("Close", w.surface.Close())
	w.log.Debug("window closed")
}

func (w *Window) Send(channel string, payload interface{}) {
	if w.IsDestroyed() {
		return
	}
	if err := w.surface.Send(channel, payload); err != nil {
		w.log.Warn("failed to send message", zap.String("channel", channel), zap.Error(err))
	}
}

func (w *Window) Snapshot() overlay.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return overlay.State{
		ID:       w.id,
		Kind:     w.desc.Kind,
		Position: w.pos,
		Size:     w.size,
		Flags:    w.flags,
		Visible:  w.visible,
	}
}

var _ overlay.Window = (*Window)(nil)
