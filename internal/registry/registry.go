// Package registry owns the creation and destruction of overlay windows.
//
// It is the only writer of the "window exists" fact: every other component
// receives windows by reference and asks the registry whether they are live.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

var (
	// ErrUnknownKind is returned for kinds without a descriptor
	ErrUnknownKind = errors.New("unknown window kind")
	// ErrNotAdopted is returned when Main is requested before the host adopted it
	ErrNotAdopted = errors.New("main window not adopted")
)

// Factory creates the native window for a descriptor
type Factory interface {
	Create(ctx context.Context, d overlay.Descriptor, pos overlay.Position, size overlay.Size) (overlay.Window, error)
}

// Positions loads and persists window origins
type Positions interface {
	Load(kind overlay.Kind, display overlay.Size) overlay.Position
	SaveDeferred(kind overlay.Kind, pos overlay.Position)
}

// Pinner applies desktop-level placement
type Pinner interface {
	Pin(w overlay.Window)
}

// MoveFunc observes window moves
type MoveFunc func(kind overlay.Kind, pos overlay.Position)

// Config wires a Registry
type Config struct {
	Descriptors map[overlay.Kind]overlay.Descriptor
	Factory     Factory
	Positions   Positions
	Pinner      Pinner
	// Display returns the primary display bounds.
	Display func() overlay.Size
	Logger  *zap.Logger
}

// Registry tracks at most one window per kind
type Registry struct {
	descriptors map[overlay.Kind]overlay.Descriptor
	factory     Factory
	positions   Positions
	pin         Pinner
	display     func() overlay.Size
	log         *zap.Logger

	mu      sync.RWMutex
	windows map[overlay.Kind]overlay.Window
	onMove  map[overlay.Kind][]MoveFunc
}

// New creates an empty registry
func New(cfg Config) *Registry {
	if cfg.Descriptors == nil {
		cfg.Descriptors = overlay.Descriptors()
	}
	if cfg.Display == nil {
		cfg.Display = func() overlay.Size { return overlay.Size{Width: 1920, Height: 1080} }
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Registry{
		descriptors: cfg.Descriptors,
		factory:     cfg.Factory,
		positions:   cfg.Positions,
		pin:         cfg.Pinner,
		display:     cfg.Display,
		log:         log.Named("registry"),
		windows:     make(map[overlay.Kind]overlay.Window),
		onMove:      make(map[overlay.Kind][]MoveFunc),
	}
}

// Descriptor returns the policy of kind
func (r *Registry) Descriptor(kind overlay.Kind) (overlay.Descriptor, bool) {
	d, ok := r.descriptors[kind]
	return d, ok
}

// Adopt registers a window created outside the factory, such as the
// host's own webview.
func (r *Registry) Adopt(w overlay.Window) error {
	if _, ok := r.descriptors[w.Kind()]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, w.Kind())
	}

	r.mu.Lock()
	r.windows[w.Kind()] = w
	r.mu.Unlock()

	r.log.Info("window adopted", zap.String("kind", string(w.Kind())), zap.String("id", w.ID()))
	return nil
}

// Initial returns the position and size a new window of kind starts with
func (r *Registry) Initial(kind overlay.Kind) (overlay.Position, overlay.Size) {
	display := r.display()
	size := r.descriptors[kind].DefaultSize
	if kind == overlay.KindMain || size.Width == 0 || size.Height == 0 {
		size = display
	}
	return r.positions.Load(kind, display), size
}

// Open returns the live window of kind, focusing it, or creates it.
// Opening an open window never creates a second instance.
func (r *Registry) Open(ctx context.Context, kind overlay.Kind) (overlay.Window, error) {
	d, ok := r.descriptors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if w, ok := r.Get(kind); ok {
		w.Show()
		w.Focus()
		r.log.Debug("window already open, focusing", zap.String("kind", string(kind)))
		return w, nil
	}
	if kind == overlay.KindMain {
		return nil, ErrNotAdopted
	}

	pos, size := r.Initial(kind)
	w, err := r.factory.Create(ctx, d, pos, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s window: %w", kind, err)
	}

	r.mu.Lock()
	r.windows[kind] = w
	r.mu.Unlock()

	if d.DesktopLevel && r.pin != nil {
		r.pin.Pin(w)
	}

	r.log.Info("window opened",
		zap.String("kind", string(kind)),
		zap.String("id", w.ID()),
		zap.Int("x", pos.X),
		zap.Int("y", pos.Y))
	return w, nil
}

// Close destroys the window of kind. It reports whether one was open.
func (r *Registry) Close(kind overlay.Kind) bool {
	r.mu.Lock()
	w, ok := r.windows[kind]
	delete(r.windows, kind)
	r.mu.Unlock()

	if !ok {
		return false
	}
	w.Close()
	r.log.Info("window closed", zap.String("kind", string(kind)))
	return true
}

// Resize sets the content size of the window of kind, if open
func (r *Registry) Resize(kind overlay.Kind, size overlay.Size) bool {
	if size.Width <= 0 || size.Height <= 0 {
		return false
	}
	w, ok := r.Get(kind)
	if !ok {
		return false
	}
	w.SetContentSize(size)
	return true
}

// OnMove registers fn for moves of kind
func (r *Registry) OnMove(kind overlay.Kind, fn MoveFunc) {
	r.mu.Lock()
	r.onMove[kind] = append(r.onMove[kind], fn)
	r.mu.Unlock()
}

// HandleMoved records a move reported by the window of kind
func (r *Registry) HandleMoved(kind overlay.Kind, pos overlay.Position) {
	if _, ok := r.Get(kind); !ok {
		return
	}
	r.positions.SaveDeferred(kind, pos)

	r.mu.RLock()
	callbacks := append([]MoveFunc(nil), r.onMove[kind]...)
	r.mu.RUnlock()

	for _, fn := range callbacks {
		fn(kind, pos)
	}
}

// HandleClosed forgets the window of kind after it went away on its own
func (r *Registry) HandleClosed(kind overlay.Kind) {
	r.mu.Lock()
	_, ok := r.windows[kind]
	delete(r.windows, kind)
	r.mu.Unlock()

	if ok {
		r.log.Info("window went away", zap.String("kind", string(kind)))
	}
}

// Get returns the live window of kind. Destroyed windows are forgotten.
func (r *Registry) Get(kind overlay.Kind) (overlay.Window, bool) {
	r.mu.RLock()
	w, ok := r.windows[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if w.IsDestroyed() {
		r.HandleClosed(kind)
		return nil, false
	}
	return w, true
}

// Main returns the Main window or nil
func (r *Registry) Main() overlay.Window {
	w, _ := r.Get(overlay.KindMain)
	return w
}

// Control returns the Control window or nil
func (r *Registry) Control() overlay.Window {
	w, _ := r.Get(overlay.KindControl)
	return w
}

// Windows returns every live window in kind order
func (r *Registry) Windows() []overlay.Window {
	return lo.FilterMap(overlay.Kinds, func(kind overlay.Kind, _ int) (overlay.Window, bool) {
		return r.Get(kind)
	})
}

// Interested returns the live windows subscribed to mode broadcasts
func (r *Registry) Interested() []overlay.Window {
	return lo.Filter(r.Windows(), func(w overlay.Window, _ int) bool {
		return r.descriptors[w.Kind()].ReceivesMode
	})
}

// Snapshots returns the state of every live window
func (r *Registry) Snapshots() []overlay.State {
	return lo.Map(r.Windows(), func(w overlay.Window, _ int) overlay.State {
		return w.Snapshot()
	})
}

// CloseAll destroys every window except Main, which belongs to the host
func (r *Registry) CloseAll() {
	for _, w := range r.Windows() {
		if w.Kind() != overlay.KindMain {
			r.Close(w.Kind())
		}
	}
}
