package window

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"desk-overlay/internal/native"
	"desk-overlay/internal/overlay"
)

// Factory creates auxiliary windows as widget processes
type Factory struct {
	Ops      native.Ops
	Launcher Launcher
	Bus      Sender
	// BusAddr and Token are handed to each widget on its command line.
	BusAddr func() string
	Token   string
	// Gone is called when a widget exits without being closed.
	Gone   func(kind overlay.Kind)
	Logger *zap.Logger

	mu      sync.Mutex
	running map[string]*ProcessSurface
}

// Create launches the widget process for d and wraps it as a Window
func (f *Factory) Create(ctx context.Context, d overlay.Descriptor, pos overlay.Position, size overlay.Size) (overlay.Window, error) {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}

	session := f.Bus.Expect(d.Kind)
	args := WidgetArgs(d.Kind, f.BusAddr(), f.Token, session, pos, size)
	surface, err := StartProcess(ctx, f.Launcher, f.Bus, d.Kind, session, args, log)
	if err != nil {
		return nil, err
	}
	f.track(surface)

	w := New(d, f.Ops, surface, pos, size, log)
	w.Watch(f.Gone)
	return w, nil
}

func (f *Factory) track(s *ProcessSurface) {
	f.mu.Lock()
	if f.running == nil {
		f.running = make(map[string]*ProcessSurface)
	}
	f.running[s.session] = s
	f.mu.Unlock()

	go func() {
		<-s.Done()
		f.mu.Lock()
		delete(f.running, s.session)
		f.mu.Unlock()
	}()
}

// Dropped reacts to the bus losing the connection of a session. The
// widget is killed, which reports it through Gone.
func (f *Factory) Dropped(kind overlay.Kind, session string) {
	f.mu.Lock()
	s, ok := f.running[session]
	f.mu.Unlock()
	if !ok || s.kind != kind {
		return
	}
	s.dropped()
}
