// Package overlaytest provides an in-memory overlay.Window for tests.
package overlaytest

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"desk-overlay/internal/overlay"
)

// Message is an IPC message recorded by a Window
type Message struct {
	Channel string
	Payload interface{}
}

// Window records every call made on it. The zero value is not usable; use New.
type Window struct {
	mu        sync.Mutex
	id        string
	kind      overlay.Kind
	handle    uintptr
	destroyed bool
	focused   bool
	visible   bool
	forward   bool
	allSpaces bool
	flags     overlay.Flags
	pos       overlay.Position
	size      overlay.Size
	messages  []Message
	calls     map[string]int
}

// New creates a live, visible fake window of the given kind
func New(kind overlay.Kind) *Window {
	return &Window{
		id:      uuid.NewString(),
		kind:    kind,
		handle:  0x1000,
		visible: true,
		flags:   overlay.Flags{Focusable: true},
		calls:   make(map[string]int),
	}
}

func (w *Window) record(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[name]++
	return !w.destroyed
}

func (w *Window) ID() string         { return w.id }
func (w *Window) Kind() overlay.Kind { return w.kind }

func (w *Window) IsDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// SetHandle overrides the native handle; zero makes NativeHandle fail.
func (w *Window) SetHandle(h uintptr) {
	w.mu.Lock()
	w.handle = h
	w.mu.Unlock()
}

func (w *Window) NativeHandle() (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed || w.handle == 0 {
		return 0, errors.New("no native handle")
	}
	return w.handle, nil
}

func (w *Window) SetFocusable(focusable bool) {
	if !w.record("SetFocusable") {
		return
	}
	w.mu.Lock()
	w.flags.Focusable = focusable
	w.mu.Unlock()
}

func (w *Window) SetSkipTaskbar(skip bool) {
	if !w.record("SetSkipTaskbar") {
		return
	}
	w.mu.Lock()
	w.flags.SkipTaskbar = skip
	w.mu.Unlock()
}

func (w *Window) SetAlwaysOnTop(onTop bool) {
	if !w.record("SetAlwaysOnTop") {
		return
	}
	w.mu.Lock()
	w.flags.AlwaysOnTop = onTop
	w.mu.Unlock()
}

func (w *Window) IsAlwaysOnTop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flags.AlwaysOnTop
}

func (w *Window) IsFocused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

func (w *Window) Focus() {
	if !w.record("Focus") {
		return
	}
	w.mu.Lock()
	w.focused = true
	w.mu.Unlock()
}

func (w *Window) Blur() {
	if !w.record("Blur") {
		return
	}
	w.mu.Lock()
	w.focused = false
	w.mu.Unlock()
}

func (w *Window) MoveTop() {
	w.record("MoveTop")
}

func (w *Window) SetIgnoreMouseEvents(ignore bool, forward bool) {
	if !w.record("SetIgnoreMouseEvents") {
		return
	}
	w.mu.Lock()
	w.flags.InputPassthrough = ignore
	w.forward = ignore && forward
	w.mu.Unlock()
}

func (w *Window) SetVisibleOnAllWorkspaces(visible bool) {
	if !w.record("SetVisibleOnAllWorkspaces") {
		return
	}
	w.mu.Lock()
	w.allSpaces = visible
	w.mu.Unlock()
}

func (w *Window) Show() {
	if !w.record("Show") {
		return
	}
	w.mu.Lock()
	w.visible = true
	w.mu.Unlock()
}

func (w *Window) Hide() {
	if !w.record("Hide") {
		return
	}
	w.mu.Lock()
	w.visible = false
	w.mu.Unlock()
}

func (w *Window) Position() overlay.Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *Window) SetPosition(pos overlay.Position) {
	if !w.record("SetPosition") {
		return
	}
	w.mu.Lock()
	w.pos = pos
	w.mu.Unlock()
}

func (w *Window) SetContentSize(size overlay.Size) {
	if !w.record("SetContentSize") {
		return
	}
	w.mu.Lock()
	w.size = size
	w.mu.Unlock()
}

func (w *Window) Close() {
	if !w.record("Close") {
		return
	}
	w.Destroy()
}

func (w *Window) Send(channel string, payload interface{}) {
	if !w.record("Send") {
		return
	}
	w.mu.Lock()
	w.messages = append(w.messages, Message{Channel: channel, Payload: payload})
	w.mu.Unlock()
}

func (w *Window) Snapshot() overlay.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return overlay.State{
		ID:       w.id,
		Kind:     w.kind,
		Position: w.pos,
		Size:     w.size,
		Flags:    w.flags,
		Visible:  w.visible,
	}
}

// Destroy marks the window destroyed without recording a Close call.
func (w *Window) Destroy() {
	w.mu.Lock()
	w.destroyed = true
	w.focused = false
	w.mu.Unlock()
}

// StealFocus simulates the OS focusing the window behind our back.
func (w *Window) StealFocus() {
	w.mu.Lock()
	w.focused = true
	w.mu.Unlock()
}

// ForceAlwaysOnTop sets the topmost bit out-of-band.
func (w *Window) ForceAlwaysOnTop() {
	w.mu.Lock()
	w.flags.AlwaysOnTop = true
	w.mu.Unlock()
}

// Flags returns the current property combination.
func (w *Window) Flags() overlay.Flags {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flags
}

// Forwarding reports whether passthrough forwards pointer moves.
func (w *Window) Forwarding() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forward
}

// OnAllWorkspaces reports the last SetVisibleOnAllWorkspaces value.
func (w *Window) OnAllWorkspaces() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allSpaces
}

// Calls returns how many times the named method was invoked.
func (w *Window) Calls(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[name]
}

// Messages returns a copy of the messages sent to the window.
func (w *Window) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// LastMessage returns the most recent message on channel.
func (w *Window) LastMessage(channel string) (Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(w.messages) - 1; i >= 0; i-- {
		if w.messages[i].Channel == channel {
			return w.messages[i], true
		}
	}
	return Message{}, false
}

var _ overlay.Window = (*Window)(nil)
