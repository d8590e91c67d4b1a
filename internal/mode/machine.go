package mode

import (
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// ChannelEditingChanged is broadcast to interested windows on every transition
const ChannelEditingChanged = "editing-changed"

// Controller applies the per-window side of a transition
type Controller interface {
	Pin(w overlay.Window)
	Release(w overlay.Window)
}

// Windows gives the machine access to the windows it drives
type Windows interface {
	Main() overlay.Window
	Control() overlay.Window
	// Interested returns every live window subscribed to mode broadcasts.
	Interested() []overlay.Window
}

// Machine is the Desktop/Edit state machine
type Machine struct {
	state     *State
	ctrl      Controller
	windows   Windows
	log       *zap.Logger
	listeners []func(Mode)
}

// NewMachine creates a machine writing to state
func NewMachine(state *State, ctrl Controller, windows Windows, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		state:   state,
		ctrl:    ctrl,
		windows: windows,
		log:     log.Named("mode"),
	}
}

// OnChange registers fn to run after every effective transition
func (m *Machine) OnChange(fn func(Mode)) {
	m.listeners = append(m.listeners, fn)
}

// Current returns the active mode
func (m *Machine) Current() Mode {
	return m.state.Current()
}

// ToEdit makes the Main window interactive. It returns false when Edit
// was already active.
func (m *Machine) ToEdit() bool {
	if m.state.Current() == Edit {
		return false
	}
	m.state.swap(Edit)

	if main := m.windows.Main(); live(main) {
		m.ctrl.Release(main)
	}

	m.log.Info("edit mode on")
	m.broadcast(Edit)
	return true
}

// ToDesktop returns the Main window to the desktop layer. It returns false
// when Desktop was already active.
func (m *Machine) ToDesktop() bool {
	if m.state.Current() == Desktop {
		return false
	}
	m.state.swap(Desktop)

	if main := m.windows.Main(); live(main) {
		m.ctrl.Pin(main)
	}
	// keep an interactive affordance under the pointer
	if control := m.windows.Control(); live(control) {
		control.Focus()
	}

	m.log.Info("desktop mode on")
	m.broadcast(Desktop)
	return true
}

// Set moves to Edit when editing is true, Desktop otherwise
func (m *Machine) Set(editing bool) bool {
	if editing {
		return m.ToEdit()
	}
	return m.ToDesktop()
}

// Toggle flips the mode and returns the new one
func (m *Machine) Toggle() Mode {
	if m.state.Current() == Edit {
		m.ToDesktop()
	} else {
		m.ToEdit()
	}
	return m.state.Current()
}

func (m *Machine) broadcast(mode Mode) {
	editing := mode == Edit
	sent := make(map[string]struct{})
	send := func(w overlay.Window) {
		if !live(w) {
			return
		}
		if _, ok := sent[w.ID()]; ok {
			return
		}
		sent[w.ID()] = struct{}{}
		w.Send(ChannelEditingChanged, editing)
	}

	send(m.windows.Main())
	send(m.windows.Control())
	for _, w := range m.windows.Interested() {
		send(w)
	}

	for _, fn := range m.listeners {
		fn(mode)
	}
}

func live(w overlay.Window) bool {
	return w != nil && !w.IsDestroyed()
}
