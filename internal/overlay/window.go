package overlay

import "fmt"

// Kind identifies the widget hosted by an overlay window
type Kind string

const (
	KindMain     Kind = "main"
	KindControl  Kind = "control"
	KindSettings Kind = "settings"
	KindCalendar Kind = "calendar"
	KindWeather  Kind = "weather"
	KindClock    Kind = "clock"
	KindDate     Kind = "date"
)

// Kinds lists every window kind in creation order
var Kinds = []Kind{KindMain, KindControl, KindSettings, KindCalendar, KindWeather, KindClock, KindDate}

// ParseKind resolves a kind from its name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown window kind %q", s)
}

// Position is a window origin in screen coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a window content size
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Flags is the passive-mode property combination of a window
type Flags struct {
	Focusable        bool `json:"focusable"`
	AlwaysOnTop      bool `json:"always_on_top"`
	SkipTaskbar      bool `json:"skip_taskbar"`
	InputPassthrough bool `json:"input_passthrough"`
}

// State is a point-in-time snapshot of an overlay window
type State struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Flags    Flags    `json:"flags"`
	Visible  bool     `json:"visible"`
}

// Window is a frameless, transparent overlay window.
//
// Every mutating method must be a silent no-op once the window has been
// destroyed. Implementations are safe for use from multiple goroutines.
type Window interface {
	ID() string
	Kind() Kind
	IsDestroyed() bool

	// NativeHandle returns the OS handle (HWND or X11 window id).
	NativeHandle() (uintptr, error)

	SetFocusable(focusable bool)
	SetSkipTaskbar(skip bool)
	SetAlwaysOnTop(onTop bool)
	IsAlwaysOnTop() bool
	IsFocused() bool
	Focus()
	Blur()
	// MoveTop brings the window to the front without changing its flags.
	MoveTop()
	// SetIgnoreMouseEvents turns input passthrough on or off. With forward
	// set, pointer moves still reach the window.
	SetIgnoreMouseEvents(ignore bool, forward bool)
	SetVisibleOnAllWorkspaces(visible bool)

	Show()
	Hide()
	Position() Position
	SetPosition(pos Position)
	SetContentSize(size Size)
	Close()

	// Send delivers an IPC message to the window's UI layer.
	Send(channel string, payload interface{})

	Snapshot() State
}
