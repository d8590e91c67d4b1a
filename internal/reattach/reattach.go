// Package reattach re-asserts the desktop-level invariant on the Main window
// whenever the OS has pulled it out of place.
package reattach

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/mode"
	"desk-overlay/internal/overlay"
)

// DefaultInterval is the periodic correction floor
const DefaultInterval = 2 * time.Second

// Scheduler runs work on the control loop
type Scheduler interface {
	Post(fn func()) bool
	After(d time.Duration, fn func()) *time.Timer
}

// Pinner applies the passive invariant to a window
type Pinner interface {
	Pin(w overlay.Window)
}

// Lowerer pushes a window to the bottom of the stack
type Lowerer interface {
	Lower(w overlay.Window)
}

// Config wires a Loop
type Config struct {
	Interval  time.Duration
	Scheduler Scheduler
	// Main returns the current Main window, or nil.
	Main func() overlay.Window
	Mode mode.Reader
	Pin  Pinner
	// Lower is optional; when set every correction also restacks.
	Lower  Lowerer
	Logger *zap.Logger
}

// Loop is a compensating control loop: it does not know why the Main window
// drifted, only that observed state deviates from the desired one.
type Loop struct {
	cfg Config
	log *zap.Logger

	corrections atomic.Int64
	stopped     atomic.Bool
	stopOnce    sync.Once
	stop        chan struct{}

	mu     sync.Mutex
	nudges map[*nudge]struct{}
}

// nudge is one pending eager check. It is registered before its timer
// exists so the callback can always find it.
type nudge struct {
	timer *time.Timer
}

// New creates a loop. Run starts it.
func New(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		cfg:    cfg,
		log:    log.Named("reattach"),
		stop:   make(chan struct{}),
		nudges: make(map[*nudge]struct{}),
	}
}

// Run ticks until ctx is cancelled, Stop is called or Main is destroyed.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.log.Info("reattachment loop started", zap.Duration("interval", l.cfg.Interval))
	defer l.log.Info("reattachment loop stopped")

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if !l.cfg.Scheduler.Post(l.Check) {
				l.Stop()
				return
			}
		}
	}
}

// Nudge schedules an eager check after delay
func (l *Loop) Nudge(delay time.Duration) {
	if l.stopped.Load() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := &nudge{}
	l.nudges[n] = struct{}{}
	n.timer = l.cfg.Scheduler.After(delay, func() {
		l.forget(n)
		l.Check()
	})
}

func (l *Loop) forget(n *nudge) {
	l.mu.Lock()
	delete(l.nudges, n)
	l.mu.Unlock()
}

// pendingNudges reports how many eager checks are still scheduled
func (l *Loop) pendingNudges() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nudges)
}

// Check runs one correction pass. It must run on the control loop.
func (l *Loop) Check() {
	if l.stopped.Load() {
		return
	}

	main := l.cfg.Main()
	if main == nil || main.IsDestroyed() {
		l.log.Info("main window gone, stopping")
		l.Stop()
		return
	}
	if l.cfg.Mode.Current() != mode.Desktop {
		return
	}
	if !main.IsFocused() && !main.IsAlwaysOnTop() {
		return
	}

	l.corrections.Add(1)
	l.log.Debug("correcting drift",
		zap.Bool("focused", main.IsFocused()),
		zap.Bool("always_on_top", main.IsAlwaysOnTop()))

	l.cfg.Pin.Pin(main)
	if l.cfg.Lower != nil {
		l.cfg.Lower.Lower(main)
	}
}

// Stop ends the loop permanently. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.stop)

		l.mu.Lock()
		for n := range l.nudges {
			if n.timer != nil {
				n.timer.Stop()
			}
			delete(l.nudges, n)
		}
		l.mu.Unlock()
	})
}

// Stopped reports whether the loop has ended
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Corrections returns how many corrective pins have been applied
func (l *Loop) Corrections() int64 {
	return l.corrections.Load()
}
