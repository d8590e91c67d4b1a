package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-overlay/internal/overlay"
)

func direct(fn func()) bool {
	fn()
	return true
}

func TestNewMessageAndDecode(t *testing.T) {
	m, err := NewMessage(ChannelResizeControl, overlay.KindControl, SizePayload{Width: 200, Height: 120})
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":200,"height":120}`, string(m.Payload))

	var size SizePayload
	require.NoError(t, m.Decode(&size))
	assert.Equal(t, SizePayload{Width: 200, Height: 120}, size)

	empty, err := NewMessage(ChannelToggleEdit, overlay.KindMain, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Payload)
	assert.Error(t, empty.Decode(&size))

	raw, err := NewMessage(ChannelUpdateSettings, overlay.KindSettings, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw.Payload))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "open-calendar-window", OpenChannel("calendar"))
	assert.Equal(t, "close-time-window", CloseChannel("time"))
	assert.Equal(t, "resize-weather", ResizeChannel("weather"))
	assert.Equal(t, "apply-notes-settings", ApplySettingsChannel("notes"))
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(direct, nil)

	var got []Message
	r.Handle(ChannelToggleEdit, func(m Message) { got = append(got, m) })

	assert.True(t, r.Dispatch(Message{Channel: ChannelToggleEdit, Kind: overlay.KindControl}))
	assert.False(t, r.Dispatch(Message{Channel: "nope"}))
	require.Len(t, got, 1)
	assert.Equal(t, overlay.KindControl, got[0].Kind)
	assert.ElementsMatch(t, []string{ChannelToggleEdit}, r.Channels())
}

func TestRouterStoppedLoop(t *testing.T) {
	r := NewRouter(func(func()) bool { return false }, nil)
	called := false
	r.Handle(ChannelCloseApp, func(Message) { called = true })

	assert.False(t, r.Dispatch(Message{Channel: ChannelCloseApp}))
	assert.False(t, called)
}

func startServer(t *testing.T, r *Router) *Server {
	t.Helper()
	s := NewServer(r, nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Close(ctx)
	})
	return s
}

func dial(t *testing.T, s *Server, kind overlay.Kind) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, s.Addr(), s.Token(), "", kind, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	inbound := make(chan Message, 1)
	r := NewRouter(direct, nil)
	r.Handle(ChannelToggleEdit, func(m Message) { inbound <- m })

	s := startServer(t, r)
	c := dial(t, s, overlay.KindControl)

	outbound := make(chan Message, 1)
	c.Handle(ChannelEditingChanged, func(m Message) { outbound <- m })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// the kind in the payload is ignored in favour of the connection's
	require.NoError(t, c.Send(ChannelToggleEdit, nil))
	select {
	case m := <-inbound:
		assert.Equal(t, overlay.KindControl, m.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("host never received toggle-edit")
	}

	require.Eventually(t, func() bool { return s.Connected(overlay.KindControl) }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Send(overlay.KindControl, ChannelEditingChanged, true))
	select {
	case m := <-outbound:
		var editing bool
		require.NoError(t, m.Decode(&editing))
		assert.True(t, editing)
	case <-time.After(2 * time.Second):
		t.Fatal("widget never received editing-changed")
	}
}

func TestQueuedUntilConnect(t *testing.T) {
	s := startServer(t, NewRouter(direct, nil))

	require.NoError(t, s.Send(overlay.KindClock, ChannelSurfaceShow, nil))
	require.NoError(t, s.Send(overlay.KindClock, ChannelSurfacePosition, PositionPayload{X: 10, Y: 20}))

	c := dial(t, s, overlay.KindClock)
	got := make(chan Message, 2)
	c.HandleAll(func(m Message) { got <- m })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	var channels []string
	for i := 0; i < 2; i++ {
		select {
		case m := <-got:
			channels = append(channels, m.Channel)
		case <-time.After(2 * time.Second):
			t.Fatal("queued message never arrived")
		}
	}
	assert.Equal(t, []string{ChannelSurfaceShow, ChannelSurfacePosition}, channels)
}

func TestRejectsBadToken(t *testing.T) {
	s := startServer(t, NewRouter(direct, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, s.Addr(), "wrong", "", overlay.KindClock, nil)
	assert.Error(t, err)

	_, err = Dial(ctx, s.Addr(), s.Token(), "", overlay.KindMain, nil)
	assert.Error(t, err)
}

func TestDisconnectCallbacks(t *testing.T) {
	s := startServer(t, NewRouter(direct, nil))

	var mu sync.Mutex
	var events []string
	s.OnConnect(func(k overlay.Kind) {
		mu.Lock()
		events = append(events, "up:"+string(k))
		mu.Unlock()
	})
	s.OnDisconnect(func(k overlay.Kind, session string) {
		mu.Lock()
		events = append(events, "down:"+string(k)+session)
		mu.Unlock()
	})

	c := dial(t, s, overlay.KindWeather)
	require.Eventually(t, func() bool { return s.Connected(overlay.KindWeather) }, time.Second, 10*time.Millisecond)

	c.Close()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"up:weather", "down:weather"}, events)
	assert.False(t, s.Connected(overlay.KindWeather))
}

func TestSessionsIsolateRelaunches(t *testing.T) {
	s := startServer(t, NewRouter(direct, nil))
	var dropped []string
	var mu sync.Mutex
	s.OnDisconnect(func(_ overlay.Kind, session string) {
		mu.Lock()
		dropped = append(dropped, session)
		mu.Unlock()
	})

	first := s.Expect(overlay.KindCalendar)
	// closed before it ever connected
	require.NoError(t, s.SendTo(overlay.KindCalendar, first, ChannelSurfaceClose, nil))

	second := s.Expect(overlay.KindCalendar)
	assert.NotEqual(t, first, second)
	assert.ErrorIs(t, s.SendTo(overlay.KindCalendar, first, ChannelSurfaceShow, nil), ErrStaleSession)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, s.Addr(), s.Token(), first, overlay.KindCalendar, nil)
	assert.Error(t, err)
	_, err = Dial(ctx, s.Addr(), s.Token(), "", overlay.KindCalendar, nil)
	assert.Error(t, err)

	c, err := Dial(ctx, s.Addr(), s.Token(), second, overlay.KindCalendar, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	got := make(chan Message, 4)
	c.HandleAll(func(m Message) { got <- m })
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go c.Run(runCtx)

	require.Eventually(t, func() bool { return s.SessionConnected(overlay.KindCalendar, second) }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.SendTo(overlay.KindCalendar, second, ChannelSurfaceShow, nil))
	select {
	case m := <-got:
		assert.Equal(t, ChannelSurfaceShow, m.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("new session never received surface-show")
	}

	// the old launch going away leaves the new one connected
	s.Disconnect(overlay.KindCalendar, first)
	assert.True(t, s.SessionConnected(overlay.KindCalendar, second))

	s.Disconnect(overlay.KindCalendar, second)
	assert.False(t, s.Connected(overlay.KindCalendar))
	assert.ErrorIs(t, s.SendTo(overlay.KindCalendar, second, ChannelSurfaceShow, nil), ErrStaleSession)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, dropped, "Disconnect must not report a drop")
}

func TestSendAfterClose(t *testing.T) {
	s := NewServer(NewRouter(direct, nil), nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.NoError(t, s.Close(context.Background()))

	assert.ErrorIs(t, s.Send(overlay.KindClock, ChannelSurfaceShow, nil), ErrClosed)
	assert.NoError(t, s.Close(context.Background()))
}

type fakeEvents struct {
	mu        sync.Mutex
	listeners map[string]func(data ...interface{})
	emitted   []string
	payloads  []interface{}
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{listeners: make(map[string]func(data ...interface{}))}
}

func (f *fakeEvents) On(name string, fn func(data ...interface{})) func() {
	f.mu.Lock()
	f.listeners[name] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, name)
		f.mu.Unlock()
	}
}

func (f *fakeEvents) Emit(name string, data ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, name)
	f.payloads = append(f.payloads, payloadOf(data))
}

func (f *fakeEvents) fire(name string, data ...interface{}) bool {
	f.mu.Lock()
	fn, ok := f.listeners[name]
	f.mu.Unlock()
	if ok {
		fn(data...)
	}
	return ok
}

func TestBridgeRouter(t *testing.T) {
	ev := newFakeEvents()
	r := NewRouter(direct, nil)

	var got []Message
	r.Handle(ChannelUpdateNoteStyles, func(m Message) { got = append(got, m) })

	cancel := BridgeRouter(ev, r, overlay.KindMain, []string{ChannelUpdateNoteStyles}, nil)
	require.True(t, ev.fire(ChannelUpdateNoteStyles, map[string]interface{}{"color": "red"}))
	require.Len(t, got, 1)
	assert.Equal(t, overlay.KindMain, got[0].Kind)
	assert.JSONEq(t, `{"color":"red"}`, string(got[0].Payload))

	cancel()
	assert.False(t, ev.fire(ChannelUpdateNoteStyles))
}

func TestEmitMessage(t *testing.T) {
	ev := newFakeEvents()

	EmitMessage(ev, Message{Channel: ChannelEditingChanged, Payload: json.RawMessage(`true`)})
	EmitMessage(ev, Message{Channel: ChannelSurfaceShow})

	assert.Equal(t, []string{ChannelEditingChanged, ChannelSurfaceShow}, ev.emitted)
	assert.Equal(t, true, ev.payloads[0])
	assert.Nil(t, ev.payloads[1])
}
