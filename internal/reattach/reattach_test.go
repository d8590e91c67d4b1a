package reattach

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-overlay/internal/loop"
	"desk-overlay/internal/mode"
	"desk-overlay/internal/overlay"
	"desk-overlay/internal/overlay/overlaytest"
)

type modeVar struct {
	mu sync.Mutex
	m  mode.Mode
}

func (v *modeVar) Current() mode.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.m
}

func (v *modeVar) set(m mode.Mode) {
	v.mu.Lock()
	v.m = m
	v.mu.Unlock()
}

// pinner mirrors the desktop controller's passive flags
type pinner struct {
	mu   sync.Mutex
	pins int
}

func (p *pinner) Pin(w overlay.Window) {
	p.mu.Lock()
	p.pins++
	p.mu.Unlock()
	w.SetAlwaysOnTop(false)
	w.Blur()
}

func (p *pinner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pins
}

type lowerer struct {
	mu    sync.Mutex
	calls int
}

func (l *lowerer) Lower(overlay.Window) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
}

type fixture struct {
	loop   *loop.Loop
	main   *overlaytest.Window
	mode   *modeVar
	pin    *pinner
	lower  *lowerer
	ctx    context.Context
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := loop.New(0)
	go l.Run(ctx)

	return &fixture{
		loop:   l,
		main:   overlaytest.New(overlay.KindMain),
		mode:   &modeVar{m: mode.Desktop},
		pin:    &pinner{},
		lower:  &lowerer{},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (f *fixture) reattach(interval time.Duration, withLower bool) *Loop {
	cfg := Config{
		Interval:  interval,
		Scheduler: f.loop,
		Main:      func() overlay.Window { return f.main },
		Mode:      f.mode,
		Pin:       f.pin,
	}
	if withLower {
		cfg.Lower = f.lower
	}
	return New(cfg)
}

func TestConvergesWithinOneTick(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(20*time.Millisecond, false)
	go r.Run(f.ctx)

	f.main.ForceAlwaysOnTop()

	assert.Eventually(t, func() bool {
		return !f.main.IsAlwaysOnTop()
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, r.Corrections(), int64(1))
}

func TestNudgeCorrectsFocus(t *testing.T) {
	f := newFixture(t)
	// long interval: only the nudge can correct within the deadline
	r := f.reattach(time.Hour, true)
	go r.Run(f.ctx)

	f.main.StealFocus()
	r.Nudge(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return !f.main.IsFocused()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.pin.count())

	f.lower.mu.Lock()
	defer f.lower.mu.Unlock()
	assert.Equal(t, 1, f.lower.calls)
}

func TestNoCorrectionWhenInPlace(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(time.Hour, false)

	require.True(t, f.loop.Do(r.Check))
	assert.Zero(t, r.Corrections())
	assert.Zero(t, f.pin.count())
}

func TestSkipsInEditMode(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(time.Hour, false)

	f.mode.set(mode.Edit)
	f.main.StealFocus()
	f.main.ForceAlwaysOnTop()

	require.True(t, f.loop.Do(r.Check))
	assert.Zero(t, f.pin.count())
	assert.True(t, f.main.IsFocused())
	assert.False(t, r.Stopped())
}

func TestStopsWhenMainDestroyed(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(10*time.Millisecond, false)

	done := make(chan struct{})
	go func() {
		r.Run(f.ctx)
		close(done)
	}()

	f.main.Destroy()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop kept running after main was destroyed")
	}
	assert.True(t, r.Stopped())
	assert.Zero(t, f.pin.count())

	// nudges after stop are ignored
	assert.NotPanics(t, func() { r.Nudge(time.Millisecond) })
}

func TestStopsWithoutMain(t *testing.T) {
	f := newFixture(t)
	r := New(Config{
		Scheduler: f.loop,
		Main:      func() overlay.Window { return nil },
		Mode:      f.mode,
		Pin:       f.pin,
	})

	require.True(t, f.loop.Do(r.Check))
	assert.True(t, r.Stopped())
}

func TestStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(time.Hour, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
	assert.True(t, r.Stopped())
	r.Stop()
}

func TestPendingNudgeCancelledByStop(t *testing.T) {
	f := newFixture(t)
	r := f.reattach(time.Hour, false)

	f.main.StealFocus()
	r.Nudge(50 * time.Millisecond)
	r.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.pin.count())
	assert.True(t, f.main.IsFocused())
}

// eagerScheduler fires After callbacks before After returns
type eagerScheduler struct{}

func (eagerScheduler) Post(fn func()) bool {
	fn()
	return true
}

func (eagerScheduler) After(_ time.Duration, fn func()) *time.Timer {
	go fn()
	// give the callback time to run ahead of the caller
	time.Sleep(20 * time.Millisecond)
	return time.NewTimer(time.Hour)
}

func TestNudgeFiringImmediatelyIsForgotten(t *testing.T) {
	f := newFixture(t)
	r := New(Config{
		Interval:  time.Hour,
		Scheduler: eagerScheduler{},
		Main:      func() overlay.Window { return f.main },
		Mode:      f.mode,
		Pin:       f.pin,
	})

	f.main.StealFocus()
	r.Nudge(0)

	require.Eventually(t, func() bool { return f.pin.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.pendingNudges())
	r.Stop()
}
