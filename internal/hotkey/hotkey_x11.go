//go:build linux || freebsd || openbsd || netbsd

package hotkey

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"go.uber.org/zap"
)

type x11Hotkey struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	once sync.Once
}

// Register grabs accel on the root window and runs fn on every press.
// fn runs on the X event goroutine.
func Register(accel Accelerator, fn func(), log *zap.Logger) (Hotkey, error) {
	if log == nil {
		log = zap.NewNop()
	}
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	keybind.Initialize(xu)
	// the grab must still fire with any lock key on
	xevent.IgnoreMods = lockCombinations(lockMasks(xu))

	root := xu.RootWin()
	seq := accel.X11()
	err = keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		log.Debug("hotkey pressed", zap.String("accelerator", accel.String()))
		fn()
	}).Connect(xu, root, seq, true)
	if err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("failed to grab %s: %w", seq, err)
	}

	go xevent.Main(xu)
	log.Info("hotkey registered", zap.String("accelerator", accel.String()), zap.String("x11", seq))
	return &x11Hotkey{xu: xu, root: root}, nil
}

func (h *x11Hotkey) Close() error {
	h.once.Do(func() {
		keybind.Detach(h.xu, h.root)
		xevent.Quit(h.xu)
		h.xu.Conn().Close()
	})
	return nil
}

// lockMasks returns CapsLock and the modifiers NumLock and ScrollLock are
// mapped to on this server
func lockMasks(xu *xgbutil.XUtil) []uint16 {
	masks := []uint16{xproto.ModMaskLock}
	for _, sym := range []string{"Num_Lock", "Scroll_Lock"} {
		for _, code := range keybind.StrToKeycodes(xu, sym) {
			if mask := keybind.ModGet(xu, code); mask != 0 {
				masks = append(masks, mask)
				break
			}
		}
	}
	return masks
}
