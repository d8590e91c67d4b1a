package window

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-overlay/internal/bus"
	"desk-overlay/internal/native"
	"desk-overlay/internal/overlay"
)

type fakeOps struct {
	mu         sync.Mutex
	titles     map[string]uintptr
	alive      map[uintptr]bool
	foreground uintptr
	topmost    map[uintptr]bool
	calls      []string
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		titles:  make(map[string]uintptr),
		alive:   make(map[uintptr]bool),
		topmost: make(map[uintptr]bool),
	}
}

func (f *fakeOps) add(title string, h uintptr) {
	f.mu.Lock()
	f.titles[title] = h
	f.alive[h] = true
	f.mu.Unlock()
}

func (f *fakeOps) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeOps) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeOps) Find(title string) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.titles[title]; ok {
		return h, nil
	}
	return 0, native.ErrNotFound
}

func (f *fakeOps) IsAlive(h uintptr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[h]
}

func (f *fakeOps) SetFocusable(uintptr, bool) error   { f.record("SetFocusable"); return nil }
func (f *fakeOps) SetSkipTaskbar(uintptr, bool) error { f.record("SetSkipTaskbar"); return nil }

func (f *fakeOps) SetAlwaysOnTop(h uintptr, onTop bool) error {
	f.record("SetAlwaysOnTop")
	f.mu.Lock()
	f.topmost[h] = onTop
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) IsAlwaysOnTop(h uintptr) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topmost[h], nil
}

func (f *fakeOps) Foreground() (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foreground, nil
}

func (f *fakeOps) Focus(h uintptr) error {
	f.record("Focus")
	f.mu.Lock()
	f.foreground = h
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) Blur(h uintptr) error {
	f.record("Blur")
	f.mu.Lock()
	if f.foreground == h {
		f.foreground = 0
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeOps) Raise(uintptr) error                     { f.record("Raise"); return nil }
func (f *fakeOps) Lower(uintptr) error                     { f.record("Lower"); return nil }
func (f *fakeOps) SetInputPassthrough(uintptr, bool) error { f.record("SetInputPassthrough"); return nil }
func (f *fakeOps) SetAllWorkspaces(uintptr, bool) error    { f.record("SetAllWorkspaces"); return nil }
func (f *fakeOps) Close(uintptr) error                     { f.record("Close"); return nil }
func (f *fakeOps) DisplaySize() (int, int, error)          { return 1920, 1080, nil }

type fakeSurface struct {
	mu       sync.Mutex
	calls    []string
	channels []string
	onTop    bool
	done     chan struct{}
	once     sync.Once
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{done: make(chan struct{})}
}

func (s *fakeSurface) record(name string) error {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	return nil
}

func (s *fakeSurface) Send(channel string, _ interface{}) error {
	s.mu.Lock()
	s.channels = append(s.channels, channel)
	s.mu.Unlock()
	return nil
}

func (s *fakeSurface) SetPosition(overlay.Position) error { return s.record("SetPosition") }
func (s *fakeSurface) SetSize(overlay.Size) error         { return s.record("SetSize") }

func (s *fakeSurface) SetAlwaysOnTop(onTop bool) error {
	s.mu.Lock()
	s.onTop = onTop
	s.mu.Unlock()
	return s.record("SetAlwaysOnTop")
}

func (s *fakeSurface) Show() error  { return s.record("Show") }
func (s *fakeSurface) Hide() error  { return s.record("Hide") }
func (s *fakeSurface) Close() error { s.exit(); return s.record("Close") }

func (s *fakeSurface) Done() <-chan struct{} { return s.done }

func (s *fakeSurface) exit() { s.once.Do(func() { close(s.done) }) }

func (s *fakeSurface) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func descriptor(kind overlay.Kind) overlay.Descriptor {
	return overlay.Descriptors()[kind]
}

func TestFlagsAppliedNatively(t *testing.T) {
	ops := newFakeOps()
	d := descriptor(overlay.KindCalendar)
	ops.add(d.Title, 0x42)

	w := New(d, ops, newFakeSurface(), overlay.Position{X: 1, Y: 2}, overlay.Size{Width: 3, Height: 4}, nil)

	h, err := w.NativeHandle()
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x42), h)

	w.SetSkipTaskbar(true)
	w.SetFocusable(false)
	w.SetIgnoreMouseEvents(true, true)

	state := w.Snapshot()
	assert.Equal(t, overlay.Flags{Focusable: false, SkipTaskbar: true, InputPassthrough: true}, state.Flags)
	assert.Equal(t, overlay.Position{X: 1, Y: 2}, state.Position)
	assert.GreaterOrEqual(t, ops.count("SetInputPassthrough"), 2)
}

func TestFlagsCachedUntilHandleAppears(t *testing.T) {
	ops := newFakeOps()
	d := descriptor(overlay.KindWeather)
	w := New(d, ops, newFakeSurface(), overlay.Position{}, overlay.Size{}, nil)

	w.SetFocusable(false)
	w.SetSkipTaskbar(true)
	assert.Zero(t, ops.count("SetFocusable"))

	_, err := w.NativeHandle()
	assert.ErrorIs(t, err, native.ErrNotFound)

	ops.add(d.Title, 0x7)
	w.Sync()
	assert.GreaterOrEqual(t, ops.count("SetFocusable"), 1)
	assert.GreaterOrEqual(t, ops.count("SetSkipTaskbar"), 1)
}

func TestStaleHandleReresolved(t *testing.T) {
	ops := newFakeOps()
	d := descriptor(overlay.KindClock)
	ops.add(d.Title, 0x10)

	w := New(d, ops, newFakeSurface(), overlay.Position{}, overlay.Size{}, nil)
	h, err := w.NativeHandle()
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x10), h)

	ops.mu.Lock()
	ops.alive[0x10] = false
	ops.mu.Unlock()
	ops.add(d.Title, 0x11)

	h, err = w.NativeHandle()
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x11), h)
}

func TestFocusTracking(t *testing.T) {
	ops := newFakeOps()
	d := descriptor(overlay.KindMain)
	ops.add(d.Title, 0x1)
	w := New(d, ops, newFakeSurface(), overlay.Position{}, overlay.Size{}, nil)

	w.Focus()
	assert.True(t, w.IsFocused())

	// another window takes focus behind our back
	ops.mu.Lock()
	ops.foreground = 0x99
	ops.mu.Unlock()
	assert.False(t, w.IsFocused())

	w.Focus()
	w.Blur()
	assert.False(t, w.IsFocused())
}

func TestFocusReportsWithoutNative(t *testing.T) {
	w := New(descriptor(overlay.KindControl), nil, newFakeSurface(), overlay.Position{}, overlay.Size{}, nil)

	assert.False(t, w.IsFocused())
	w.SetFocused(true)
	assert.True(t, w.IsFocused())

	_, err := w.NativeHandle()
	assert.True(t, errors.Is(err, native.ErrUnsupported))
}

func TestAlwaysOnTopRoutesToSurfaceWithoutHandle(t *testing.T) {
	s := newFakeSurface()
	w := New(descriptor(overlay.KindSettings), nil, s, overlay.Position{}, overlay.Size{}, nil)

	w.SetAlwaysOnTop(true)
	assert.True(t, w.IsAlwaysOnTop())
	assert.Contains(t, s.Calls(), "SetAlwaysOnTop")

	ops := newFakeOps()
	d := descriptor(overlay.KindSettings)
	ops.add(d.Title, 0x5)
	s2 := newFakeSurface()
	w2 := New(d, ops, s2, overlay.Position{}, overlay.Size{}, nil)
	w2.SetAlwaysOnTop(true)
	assert.NotContains(t, s2.Calls(), "SetAlwaysOnTop")
	assert.True(t, w2.IsAlwaysOnTop())
}

func TestSurfaceOperations(t *testing.T) {
	s := newFakeSurface()
	w := New(descriptor(overlay.KindDate), nil, s, overlay.Position{}, overlay.Size{}, nil)

	w.SetPosition(overlay.Position{X: 10, Y: 20})
	w.SetContentSize(overlay.Size{Width: 300, Height: 100})
	w.Hide()
	w.Show()
	w.Send(bus.ChannelEditingChanged, true)

	assert.Equal(t, []string{"SetPosition", "SetSize", "Hide", "Show"}, s.Calls())
	assert.Equal(t, []string{bus.ChannelEditingChanged}, s.channels)

	state := w.Snapshot()
	assert.Equal(t, overlay.Position{X: 10, Y: 20}, state.Position)
	assert.Equal(t, overlay.Size{Width: 300, Height: 100}, state.Size)
	assert.True(t, state.Visible)

	w.Moved(overlay.Position{X: 5, Y: 6})
	assert.Equal(t, overlay.Position{X: 5, Y: 6}, w.Position())
	assert.Len(t, s.Calls(), 4)
}

func TestDestroyedWindowIsInert(t *testing.T) {
	ops := newFakeOps()
	d := descriptor(overlay.KindCalendar)
	ops.add(d.Title, 0x3)
	s := newFakeSurface()
	w := New(d, ops, s, overlay.Position{}, overlay.Size{}, nil)

	w.Close()
	assert.True(t, w.IsDestroyed())
	before := len(s.Calls())
	nativeBefore := len(ops.calls)

	w.Close()
	w.SetFocusable(false)
	w.SetAlwaysOnTop(true)
	w.SetIgnoreMouseEvents(true, true)
	w.Show()
	w.SetPosition(overlay.Position{X: 1})
	w.Send("x", nil)
	w.Focus()
	w.MoveTop()

	assert.Len(t, s.Calls(), before)
	assert.Len(t, ops.calls, nativeBefore)
	assert.False(t, w.IsFocused())
	_, err := w.NativeHandle()
	assert.Error(t, err)
}

func TestWatchReportsExit(t *testing.T) {
	s := newFakeSurface()
	w := New(descriptor(overlay.KindWeather), nil, s, overlay.Position{}, overlay.Size{}, nil)

	gone := make(chan overlay.Kind, 1)
	w.Watch(func(k overlay.Kind) { gone <- k })

	s.exit()
	select {
	case k := <-gone:
		assert.Equal(t, overlay.KindWeather, k)
	case <-time.After(time.Second):
		t.Fatal("exit never reported")
	}
	assert.True(t, w.IsDestroyed())
}

func TestWatchSilentAfterClose(t *testing.T) {
	s := newFakeSurface()
	w := New(descriptor(overlay.KindWeather), nil, s, overlay.Position{}, overlay.Size{}, nil)

	gone := make(chan overlay.Kind, 1)
	w.Watch(func(k overlay.Kind) { gone <- k })
	w.Close()

	select {
	case <-gone:
		t.Fatal("explicit close reported as exit")
	case <-time.After(50 * time.Millisecond):
	}
}
