// Package host wires the overlay's components together and routes IPC
// messages, focus reports and hotkey presses onto the control loop.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"desk-overlay/internal/bus"
	"desk-overlay/internal/config"
	"desk-overlay/internal/desktop"
	"desk-overlay/internal/loop"
	"desk-overlay/internal/mode"
	"desk-overlay/internal/native"
	"desk-overlay/internal/overlay"
	"desk-overlay/internal/position"
	"desk-overlay/internal/reattach"
	"desk-overlay/internal/registry"
	"desk-overlay/internal/zorder"
)

// Config wires a Host
type Config struct {
	Options   config.Options
	Settings  *config.Service
	Positions *position.Store
	Driver    zorder.Driver
	Factory   registry.Factory
	// Display returns the primary display bounds.
	Display func() overlay.Size
	// Quit ends the application; it must eventually call Shutdown.
	Quit   func()
	Logger *zap.Logger
}

// Host owns every long-lived component of the overlay
type Host struct {
	opts      config.Options
	settings  *config.Service
	positions *position.Store
	quit      func()
	log       *zap.Logger

	loop     *loop.Loop
	state    *mode.State
	ctrl     *desktop.Controller
	machine  *mode.Machine
	registry *registry.Registry
	reattach *reattach.Loop
	router   *bus.Router

	started      atomic.Bool
	startOnce    sync.Once
	shutdownOnce sync.Once
}

// New builds the component graph. Nothing runs until Start.
func New(cfg Config) (*Host, error) {
	if cfg.Settings == nil || cfg.Positions == nil {
		return nil, errors.New("host needs settings and a position store")
	}
	if cfg.Driver == nil || cfg.Factory == nil {
		return nil, errors.New("host needs a z-order driver and a window factory")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	h := &Host{
		opts:      cfg.Options,
		settings:  cfg.Settings,
		positions: cfg.Positions,
		quit:      cfg.Quit,
		log:       log.Named("host"),
		loop:      loop.New(0),
		state:     mode.NewState(),
	}

	h.ctrl = desktop.New(h.state, cfg.Driver, desktop.Options{
		RaiseOnEdit:  cfg.Options.RaiseOnEdit,
		LowerTimeout: cfg.Options.HelperTimeout,
	}, log)

	h.registry = registry.New(registry.Config{
		Factory:   cfg.Factory,
		Positions: cfg.Positions,
		Pinner:    h.ctrl,
		Display:   cfg.Display,
		Logger:    log,
	})

	h.machine = mode.NewMachine(h.state, h.ctrl, h.registry, log)
	h.machine.OnChange(h.modeChanged)

	rcfg := reattach.Config{
		Interval:  cfg.Options.ReattachInterval,
		Scheduler: h.loop,
		Main:      h.registry.Main,
		Mode:      h.state,
		Pin:       h.ctrl,
		Logger:    log,
	}
	if cfg.Options.LowerOnCorrect {
		rcfg.Lower = h.ctrl
	}
	h.reattach = reattach.New(rcfg)

	h.router = bus.NewRouter(h.loop.Post, log)
	h.registerHandlers()

	return h, nil
}

// NewDriver builds the z-order driver selected by opts. ops may be nil.
func NewDriver(opts config.Options, ops native.Ops, log *zap.Logger) (zorder.Driver, error) {
	cfg := zorder.Config{
		Strategy: zorder.Strategy(opts.ZOrderStrategy),
		Timeout:  opts.HelperTimeout,
		Helper:   zorder.Helper{Binary: opts.HelperBinary()},
		Logger:   log,
	}
	if ops != nil {
		cfg.Stack = ops
	}

	driver, err := zorder.New(cfg)
	if err != nil && ops == nil {
		if log != nil {
			log.Warn("no native backend, using fallback z-order strategy", zap.Error(err))
		}
		cfg.Strategy = zorder.StrategyFallback
		return zorder.New(cfg)
	}
	return driver, err
}

// DisplayFunc reads the primary display size from ops, or falls back to
// 1920x1080.
func DisplayFunc(ops native.Ops, log *zap.Logger) func() overlay.Size {
	return func() overlay.Size {
		if ops != nil {
			w, h, err := ops.DisplaySize()
			if err == nil {
				return overlay.Size{Width: w, Height: h}
			}
			if log != nil {
				log.Warn("failed to read display size", zap.Error(err))
			}
		}
		return overlay.Size{Width: 1920, Height: 1080}
	}
}

func (h *Host) Loop() *loop.Loop { return h.loop }
func (h *Host) Router() *bus.Router { return h.router }
func (h *Host) Registry() *registry.Registry { return h.registry }
func (h *Host) Machine() *mode.Machine { return h.machine }
func (h *Host) Reattach() *reattach.Loop { return h.reattach }
func (h *Host) Controller() *desktop.Controller { return h.ctrl }

// Start runs the control loop and the reattachment loop, adopts main and
// opens the windows that should be visible at launch.
func (h *Host) Start(ctx context.Context, main overlay.Window) error {
	var err error
	h.startOnce.Do(func() {
		h.started.Store(true)
		go h.loop.Run(ctx)

		if !h.loop.Do(func() { err = h.boot(ctx, main) }) {
			err = errors.New("control loop stopped before boot")
			return
		}
		if err != nil {
			return
		}
		go h.reattach.Run(ctx)
	})
	return err
}

func (h *Host) boot(ctx context.Context, main overlay.Window) error {
	if err := h.registry.Adopt(main); err != nil {
		return fmt.Errorf("failed to adopt main window: %w", err)
	}

	h.ctrl.Pin(main)
	h.ctrl.Lower(main)

	if _, err := h.registry.Open(ctx, overlay.KindControl); err != nil {
		h.log.Error("failed to open control window", zap.Error(err))
	}
	h.applyVisibility(ctx)

	h.log.Info("host started", zap.String("mode", h.state.Current().String()))
	return nil
}

// ToggleEdit flips the mode from outside the loop, e.g. a hotkey press
func (h *Host) ToggleEdit() {
	h.loop.Post(func() {
		h.machine.Toggle()
	})
}

// WidgetConnected brings a freshly connected widget in line with the
// current mode and settings.
func (h *Host) WidgetConnected(kind overlay.Kind) {
	h.loop.Post(func() {
		w, ok := h.registry.Get(kind)
		if !ok {
			return
		}
		if s, ok := w.(syncer); ok {
			s.Sync()
		}

		d, _ := h.registry.Descriptor(kind)
		if d.DesktopLevel {
			h.ctrl.Pin(w)
			if h.state.IsEditing() {
				h.ctrl.Unlock(w)
			}
		}
		if d.ReceivesMode {
			w.Send(bus.ChannelEditingChanged, h.state.IsEditing())
		}
		if d.SettingsKey != "" {
			if section, ok := h.settings.Section(d.SettingsKey); ok {
				w.Send(bus.ApplySettingsChannel(d.SettingsKey), section)
			}
		}
	})
}

// WidgetGone forgets a widget whose process exited on its own
func (h *Host) WidgetGone(kind overlay.Kind) {
	h.loop.Post(func() {
		h.registry.HandleClosed(kind)
	})
}

func (h *Host) modeChanged(m mode.Mode) {
	h.log.Info("mode changed", zap.String("mode", m.String()))

	for _, w := range h.registry.Windows() {
		d, _ := h.registry.Descriptor(w.Kind())
		if w.Kind() == overlay.KindMain || !d.DesktopLevel {
			continue
		}
		if m == mode.Edit {
			h.ctrl.Unlock(w)
		} else {
			h.ctrl.Pin(w)
		}
	}

	if m == mode.Desktop {
		if main := h.registry.Main(); main != nil {
			h.ctrl.Lower(main)
		}
		h.reattach.Nudge(h.opts.BlurDelay)
	}
}

// Shutdown stops the loops, closes widgets and persists state. Safe to
// call more than once.
func (h *Host) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.reattach.Stop()

		if !h.started.Load() || !h.loop.Do(h.registry.CloseAll) {
			h.registry.CloseAll()
		}
		h.ctrl.Wait()

		if err := h.positions.Flush(); err != nil {
			h.log.Warn("failed to flush window positions", zap.Error(err))
		}
		if err := h.settings.Save(); err != nil {
			h.log.Warn("failed to save settings", zap.Error(err))
		}
		h.log.Info("host stopped")
	})
}

type syncer interface {
	Sync()
}

type focusReporter interface {
	SetFocused(focused bool)
}

type moveReporter interface {
	Moved(pos overlay.Position)
}
