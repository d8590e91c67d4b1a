package overlay

// PositionStrategy computes the default origin of a window for a display
type PositionStrategy func(display Size) Position

// Descriptor holds the static policy of one window kind
type Descriptor struct {
	Kind Kind
	// Title is the native window title, used to resolve the handle.
	Title string
	// IPCName is the name used in open-/close-/resize- messages.
	IPCName     string
	DefaultSize Size
	Default     PositionStrategy
	// DesktopLevel pins the window beneath normal windows when opened.
	DesktopLevel bool
	// ReceivesMode subscribes the window to editing-changed broadcasts.
	ReceivesMode bool
	// Lazy windows are only created on an explicit open request.
	Lazy bool
	// SettingsKey names the GlobalSettings section pushed to the window.
	SettingsKey string
}

// AppTitle prefixes every overlay window title
const AppTitle = "Desk Overlay"

const (
	minEdgeOffset   = 20
	centerBoxWidth  = 800
	centerBoxHeight = 600
	controlInsetX   = 180
	controlInsetY   = 120
	controlWidth    = 129
	controlHeight   = 64
	widgetWidth     = 320
	widgetHeight    = 240
	settingsWidth   = 420
	settingsHeight  = 560
	clockWidth      = 260
	clockHeight     = 120
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// TopLeft places the window at the display origin
func TopLeft(Size) Position {
	return Position{}
}

// BottomRight places the window near the bottom-right corner
func BottomRight(display Size) Position {
	return Position{
		X: maxInt(minEdgeOffset, display.Width-controlInsetX),
		Y: maxInt(minEdgeOffset, display.Height-controlInsetY),
	}
}

// Centered places an 800x600 box in the middle of the display
func Centered(display Size) Position {
	return Position{
		X: maxInt(minEdgeOffset, (display.Width-centerBoxWidth)/2),
		Y: maxInt(minEdgeOffset, (display.Height-centerBoxHeight)/2),
	}
}

// Descriptors returns the descriptor table for every kind
func Descriptors() map[Kind]Descriptor {
	return map[Kind]Descriptor{
		KindMain: {
			Kind:         KindMain,
			Title:        AppTitle,
			IPCName:      "main",
			Default:      TopLeft,
			DesktopLevel: true,
			ReceivesMode: true,
			SettingsKey:  "notes",
		},
		KindControl: {
			Kind:         KindControl,
			Title:        AppTitle + " - control",
			IPCName:      "control",
			DefaultSize:  Size{Width: controlWidth, Height: controlHeight},
			Default:      BottomRight,
			ReceivesMode: true,
		},
		KindSettings: {
			Kind:        KindSettings,
			Title:       AppTitle + " - settings",
			IPCName:     "settings",
			DefaultSize: Size{Width: settingsWidth, Height: settingsHeight},
			Default:     Centered,
			Lazy:        true,
		},
		KindCalendar: {
			Kind:         KindCalendar,
			Title:        AppTitle + " - calendar",
			IPCName:      "calendar",
			DefaultSize:  Size{Width: widgetWidth, Height: widgetHeight},
			Default:      Centered,
			DesktopLevel: true,
			ReceivesMode: true,
			Lazy:         true,
			SettingsKey:  "calendar",
		},
		KindWeather: {
			Kind:         KindWeather,
			Title:        AppTitle + " - weather",
			IPCName:      "weather",
			DefaultSize:  Size{Width: widgetWidth, Height: widgetHeight},
			Default:      Centered,
			DesktopLevel: true,
			ReceivesMode: true,
			Lazy:         true,
			SettingsKey:  "weather",
		},
		KindClock: {
			Kind:         KindClock,
			Title:        AppTitle + " - clock",
			IPCName:      "time",
			DefaultSize:  Size{Width: clockWidth, Height: clockHeight},
			Default:      Centered,
			DesktopLevel: true,
			ReceivesMode: true,
			Lazy:         true,
			SettingsKey:  "time",
		},
		KindDate: {
			Kind:         KindDate,
			Title:        AppTitle + " - date",
			IPCName:      "date",
			DefaultSize:  Size{Width: clockWidth, Height: clockHeight},
			Default:      Centered,
			DesktopLevel: true,
			ReceivesMode: true,
			Lazy:         true,
			SettingsKey:  "date",
		},
	}
}

// KindForIPCName resolves the kind addressed by an IPC window name
func KindForIPCName(name string) (Kind, bool) {
	for kind, d := range Descriptors() {
		if d.IPCName == name {
			return kind, true
		}
	}
	return "", false
}
