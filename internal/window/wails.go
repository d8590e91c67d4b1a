package window

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"desk-overlay/internal/overlay"
)

// WailsSurface drives the webview of the current Wails application
type WailsSurface struct {
	ctx context.Context

	once sync.Once
	done chan struct{}
}

// NewWailsSurface binds the runtime context received in OnStartup
func NewWailsSurface(ctx context.Context) *WailsSurface {
	return &WailsSurface{ctx: ctx, done: make(chan struct{})}
}

func (s *WailsSurface) Send(channel string, payload interface{}) error {
	if payload == nil {
		runtime.EventsEmit(s.ctx, channel)
		return nil
	}
	runtime.EventsEmit(s.ctx, channel, payload)
	return nil
}

func (s *WailsSurface) SetPosition(pos overlay.Position) error {
	runtime.WindowSetPosition(s.ctx, pos.X, pos.Y)
	return nil
}

func (s *WailsSurface) SetSize(size overlay.Size) error {
	runtime.WindowSetSize(s.ctx, size.Width, size.Height)
	return nil
}

func (s *WailsSurface) SetAlwaysOnTop(onTop bool) error {
	runtime.WindowSetAlwaysOnTop(s.ctx, onTop)
	return nil
}

func (s *WailsSurface) Show() error {
	runtime.WindowShow(s.ctx)
	return nil
}

func (s *WailsSurface) Hide() error {
	runtime.WindowHide(s.ctx)
	return nil
}

// Close quits the application that owns the webview
func (s *WailsSurface) Close() error {
	s.Shutdown()
	runtime.Quit(s.ctx)
	return nil
}

// Shutdown marks the surface gone without quitting, for OnShutdown hooks
func (s *WailsSurface) Shutdown() {
	s.once.Do(func() { close(s.done) })
}

func (s *WailsSurface) Done() <-chan struct{} { return s.done }

// Position reads the current window origin from the runtime
func (s *WailsSurface) Position() overlay.Position {
	x, y := runtime.WindowGetPosition(s.ctx)
	return overlay.Position{X: x, Y: y}
}
