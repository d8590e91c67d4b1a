// Package hotkey registers the global shortcut that toggles edit mode.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned on platforms without global hotkeys
var ErrUnsupported = errors.New("global hotkeys not supported on this platform")

// Modifier is a bit set of modifier keys
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accelerator is a parsed shortcut such as "CommandOrControl+Alt+N"
type Accelerator struct {
	Mods Modifier
	// Key is the upper-case key name: "N", "5", "F4", "SPACE".
	Key string
}

var modifierNames = map[string]Modifier{
	"commandorcontrol": ModCtrl,
	"cmdorctrl":        ModCtrl,
	"control":          ModCtrl,
	"ctrl":             ModCtrl,
	"alt":              ModAlt,
	"option":           ModAlt,
	"altgr":            ModAlt,
	"shift":            ModShift,
	"super":            ModSuper,
	"meta":             ModSuper,
	"command":          ModSuper,
	"cmd":              ModSuper,
}

var namedKeys = map[string]string{
	"SPACE":     "space",
	"TAB":       "Tab",
	"ENTER":     "Return",
	"RETURN":    "Return",
	"ESC":       "Escape",
	"ESCAPE":    "Escape",
	"BACKSPACE": "BackSpace",
	"DELETE":    "Delete",
	"INSERT":    "Insert",
	"HOME":      "Home",
	"END":       "End",
	"PAGEUP":    "Prior",
	"PAGEDOWN":  "Next",
	"UP":        "Up",
	"DOWN":      "Down",
	"LEFT":      "Left",
	"RIGHT":     "Right",
}

// Parse reads an Electron-style accelerator
func Parse(s string) (Accelerator, error) {
	var a Accelerator
	parts := strings.Split(s, "+")
	for i, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: empty part", s)
		}
		if i < len(parts)-1 {
			mod, ok := modifierNames[strings.ToLower(part)]
			if !ok {
				return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown modifier %q", s, part)
			}
			a.Mods |= mod
			continue
		}

		key := strings.ToUpper(part)
		if !validKey(key) {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown key %q", s, part)
		}
		a.Key = key
	}
	if a.Mods == 0 {
		return Accelerator{}, fmt.Errorf("invalid accelerator %q: no modifier", s)
	}
	return a, nil
}

func validKey(key string) bool {
	if len(key) == 1 {
		c := key[0]
		return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	if _, ok := namedKeys[key]; ok {
		return true
	}
	_, ok := functionKey(key)
	return ok
}

// functionKey returns n for "F<n>", 1 ≤ n ≤ 24
func functionKey(key string) (int, bool) {
	if len(key) < 2 || key[0] != 'F' {
		return 0, false
	}
	n := 0
	for _, c := range key[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, n >= 1 && n <= 24
}

// X11 renders the accelerator in xgbutil keybind notation
func (a Accelerator) X11() string {
	var parts []string
	if a.Mods&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if a.Mods&ModCtrl != 0 {
		parts = append(parts, "Control")
	}
	if a.Mods&ModAlt != 0 {
		parts = append(parts, "Mod1")
	}
	if a.Mods&ModSuper != 0 {
		parts = append(parts, "Mod4")
	}

	key := a.Key
	switch {
	case len(key) == 1:
		key = strings.ToLower(key)
	case namedKeys[key] != "":
		key = namedKeys[key]
	}
	return strings.Join(append(parts, key), "-")
}

func (a Accelerator) String() string {
	var parts []string
	if a.Mods&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if a.Mods&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if a.Mods&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if a.Mods&ModSuper != 0 {
		parts = append(parts, "Super")
	}
	return strings.Join(append(parts, a.Key), "+")
}

// lockCombinations expands lock modifier masks into every combination a
// grab has to be repeated under, starting with no lock at all. Zero and
// repeated masks are skipped.
func lockCombinations(locks []uint16) []uint16 {
	var unique []uint16
	seen := make(map[uint16]bool)
	for _, m := range locks {
		if m == 0 || seen[m] {
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}

	out := make([]uint16, 0, 1<<len(unique))
	for subset := 0; subset < 1<<len(unique); subset++ {
		var mask uint16
		for i, m := range unique {
			if subset&(1<<i) != 0 {
				mask |= m
			}
		}
		out = append(out, mask)
	}
	return out
}

// Hotkey is a registered global shortcut
type Hotkey interface {
	Close() error
}
