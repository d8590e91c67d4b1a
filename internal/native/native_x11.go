//go:build linux || freebsd || openbsd || netbsd

package native

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const (
	stateAbove       = "_NET_WM_STATE_ABOVE"
	stateSkipTaskbar = "_NET_WM_STATE_SKIP_TASKBAR"
	stateSkipPager   = "_NET_WM_STATE_SKIP_PAGER"

	// source indication for pager/direct actions
	sourceIndication = 2
	allDesktops      = 0xFFFFFFFF
)

// x11 talks to the X server through one shared connection
type x11 struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	shapeOnce sync.Once
	shapeErr  error
}

// New connects to the X server named by $DISPLAY
func New() (Ops, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &x11{xu: xu, root: xu.RootWin()}, nil
}

func (x *x11) Find(title string) (uintptr, error) {
	clients, err := ewmh.ClientListGet(x.xu)
	if err != nil {
		return 0, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		if x.title(win) == title {
			return uintptr(win), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, title)
}

// title prefers _NET_WM_NAME and falls back to WM_NAME
func (x *x11) title(win xproto.Window) string {
	if name, err := ewmh.WmNameGet(x.xu, win); err == nil {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	name, err := icccm.WmNameGet(x.xu, win)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

func (x *x11) IsAlive(h uintptr) bool {
	_, err := xproto.GetWindowAttributes(x.xu.Conn(), xproto.Window(h)).Reply()
	return err == nil
}

// SetFocusable flips the ICCCM input hint
func (x *x11) SetFocusable(h uintptr, focusable bool) error {
	win := xproto.Window(h)
	hints, err := icccm.WmHintsGet(x.xu, win)
	if err != nil {
		hints = &icccm.Hints{}
	}
	hints.Flags |= icccm.HintInput
	hints.Input = 0
	if focusable {
		hints.Input = 1
	}
	return icccm.WmHintsSet(x.xu, win, hints)
}

func (x *x11) SetSkipTaskbar(h uintptr, skip bool) error {
	action := ewmh.StateRemove
	if skip {
		action = ewmh.StateAdd
	}
	if err := ewmh.WmStateReq(x.xu, xproto.Window(h), action, stateSkipTaskbar); err != nil {
		return err
	}
	return ewmh.WmStateReq(x.xu, xproto.Window(h), action, stateSkipPager)
}

func (x *x11) SetAlwaysOnTop(h uintptr, onTop bool) error {
	action := ewmh.StateRemove
	if onTop {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReq(x.xu, xproto.Window(h), action, stateAbove)
}

func (x *x11) IsAlwaysOnTop(h uintptr) (bool, error) {
	states, err := ewmh.WmStateGet(x.xu, xproto.Window(h))
	if err != nil {
		return false, err
	}
	for _, state := range states {
		if state == stateAbove {
			return true, nil
		}
	}
	return false, nil
}

func (x *x11) Foreground() (uintptr, error) {
	win, err := ewmh.ActiveWindowGet(x.xu)
	if err != nil {
		return 0, err
	}
	return uintptr(win), nil
}

// Focus activates a window using _NET_ACTIVE_WINDOW
func (x *x11) Focus(h uintptr) error {
	return x.clientMessage(xproto.Window(h), "_NET_ACTIVE_WINDOW", sourceIndication, 0, 0, 0, 0)
}

// Blur returns input focus to the root window if h holds it
func (x *x11) Blur(h uintptr) error {
	active, err := x.Foreground()
	if err != nil || active != h {
		return nil
	}
	return xproto.SetInputFocusChecked(x.xu.Conn(), xproto.InputFocusPointerRoot,
		x.root, xproto.TimeCurrentTime).Check()
}

func (x *x11) Raise(h uintptr) error {
	return x.restack(xproto.Window(h), xproto.StackModeAbove)
}

func (x *x11) Lower(h uintptr) error {
	return x.restack(xproto.Window(h), xproto.StackModeBelow)
}

// restack asks the window manager through _NET_RESTACK_WINDOW, then
// configures the client directly for managers that ignore the request.
func (x *x11) restack(win xproto.Window, mode uint32) error {
	if err := x.clientMessage(win, "_NET_RESTACK_WINDOW", sourceIndication, 0, mode, 0, 0); err != nil {
		return err
	}
	return xproto.ConfigureWindowChecked(x.xu.Conn(), win,
		xproto.ConfigWindowStackMode, []uint32{mode}).Check()
}

// SetInputPassthrough empties the XShape input region so pointer events
// reach whatever lies beneath the window.
func (x *x11) SetInputPassthrough(h uintptr, enabled bool) error {
	x.shapeOnce.Do(func() {
		x.shapeErr = shape.Init(x.xu.Conn())
	})
	if x.shapeErr != nil {
		return fmt.Errorf("shape extension unavailable: %w", x.shapeErr)
	}

	win := xproto.Window(h)
	if enabled {
		return shape.RectanglesChecked(x.xu.Conn(), shape.SoSet, shape.SkInput,
			xproto.ClipOrderingUnsorted, win, 0, 0, nil).Check()
	}
	// a None mask restores the default input region
	return shape.MaskChecked(x.xu.Conn(), shape.SoSet, shape.SkInput,
		win, 0, 0, xproto.PixmapNone).Check()
}

// SetAllWorkspaces moves the window to every desktop, or back to the current one
func (x *x11) SetAllWorkspaces(h uintptr, all bool) error {
	desktop := uint32(allDesktops)
	if !all {
		current, err := ewmh.CurrentDesktopGet(x.xu)
		if err != nil {
			return fmt.Errorf("failed to get current desktop: %w", err)
		}
		desktop = uint32(current)
	}
	return x.clientMessage(xproto.Window(h), "_NET_WM_DESKTOP", desktop, sourceIndication, 0, 0, 0)
}

func (x *x11) Close(h uintptr) error {
	return ewmh.CloseWindow(x.xu, xproto.Window(h))
}

func (x *x11) DisplaySize() (int, int, error) {
	geom := xwindow.RootGeometry(x.xu)
	if geom.Width() == 0 || geom.Height() == 0 {
		return 0, 0, fmt.Errorf("root window has no geometry")
	}
	return geom.Width(), geom.Height(), nil
}

// clientMessage sends an EWMH request to the root window. It is built by
// hand because the xgbutil ewmh request helpers assert on int data.
func (x *x11) clientMessage(win xproto.Window, name string, data ...uint32) error {
	atomReply, err := xproto.InternAtom(x.xu.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", name, err)
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}

	return xproto.SendEventChecked(
		x.xu.Conn(),
		false,
		x.root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
