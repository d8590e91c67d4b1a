//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	_MOD_ALT      = 0x0001
	_MOD_CONTROL  = 0x0002
	_MOD_SHIFT    = 0x0004
	_MOD_WIN      = 0x0008
	_MOD_NOREPEAT = 0x4000

	_WM_QUIT   = 0x0012
	_WM_HOTKEY = 0x0312

	hotkeyID = 1
)

var (
	user32                 = windows.NewLazyDLL("user32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
	private uint32
}

var virtualKeys = map[string]uintptr{
	"SPACE":     0x20,
	"TAB":       0x09,
	"ENTER":     0x0D,
	"RETURN":    0x0D,
	"ESC":       0x1B,
	"ESCAPE":    0x1B,
	"BACKSPACE": 0x08,
	"DELETE":    0x2E,
	"INSERT":    0x2D,
	"HOME":      0x24,
	"END":       0x23,
	"PAGEUP":    0x21,
	"PAGEDOWN":  0x22,
	"UP":        0x26,
	"DOWN":      0x28,
	"LEFT":      0x25,
	"RIGHT":     0x27,
}

func virtualKey(key string) uintptr {
	if len(key) == 1 {
		// letters and digits share their ASCII codes
		return uintptr(key[0])
	}
	if n, ok := functionKey(key); ok {
		return 0x70 + uintptr(n-1)
	}
	return virtualKeys[key]
}

func winModifiers(m Modifier) uintptr {
	mods := uintptr(_MOD_NOREPEAT)
	if m&ModAlt != 0 {
		mods |= _MOD_ALT
	}
	if m&ModCtrl != 0 {
		mods |= _MOD_CONTROL
	}
	if m&ModShift != 0 {
		mods |= _MOD_SHIFT
	}
	if m&ModSuper != 0 {
		mods |= _MOD_WIN
	}
	return mods
}

type winHotkey struct {
	threadID uint32
	done     chan struct{}
	once     sync.Once
}

// Register registers accel with RegisterHotKey on a dedicated OS thread
// that pumps its message queue. fn runs on that thread.
func Register(accel Accelerator, fn func(), log *zap.Logger) (Hotkey, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &winHotkey{done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)

		h.threadID = windows.GetCurrentThreadId()
		ok, _, err := procRegisterHotKey.Call(0, hotkeyID, winModifiers(accel.Mods), virtualKey(accel.Key))
		if ok == 0 {
			ready <- fmt.Errorf("RegisterHotKey %s: %w", accel, err)
			return
		}
		defer procUnregisterHotKey.Call(0, hotkeyID)
		ready <- nil

		var m msg
		for {
			r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			// 0 is WM_QUIT, -1 is an error
			if int32(r) <= 0 {
				return
			}
			if m.message == _WM_HOTKEY && m.wParam == hotkeyID {
				log.Debug("hotkey pressed", zap.String("accelerator", accel.String()))
				fn()
			}
		}
	}()

	if err := <-ready; err != nil {
		return nil, err
	}
	log.Info("hotkey registered", zap.String("accelerator", accel.String()))
	return h, nil
}

func (h *winHotkey) Close() error {
	h.once.Do(func() {
		procPostThreadMessageW.Call(uintptr(h.threadID), _WM_QUIT, 0, 0)
		<-h.done
	})
	return nil
}
