package bus

import (
	"context"
	"encoding/json"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// Events is the event surface of a webview runtime
type Events interface {
	On(name string, fn func(data ...interface{})) func()
	Emit(name string, data ...interface{})
}

// WailsEvents adapts the Wails runtime event API
type WailsEvents struct {
	ctx context.Context
}

// NewWailsEvents binds the runtime context received in OnStartup
func NewWailsEvents(ctx context.Context) WailsEvents {
	return WailsEvents{ctx: ctx}
}

func (w WailsEvents) On(name string, fn func(data ...interface{})) func() {
	return runtime.EventsOn(w.ctx, name, fn)
}

func (w WailsEvents) Emit(name string, data ...interface{}) {
	runtime.EventsEmit(w.ctx, name, data...)
}

// payloadOf folds the variadic event data into a single payload
func payloadOf(data []interface{}) interface{} {
	switch len(data) {
	case 0:
		return nil
	case 1:
		return data[0]
	default:
		return data
	}
}

// BridgeRouter forwards UI events on channels into router as messages from
// kind. The returned func unregisters every listener.
func BridgeRouter(ev Events, router *Router, kind overlay.Kind, channels []string, log *zap.Logger) func() {
	if log == nil {
		log = zap.NewNop()
	}
	cancels := make([]func(), 0, len(channels))
	for _, ch := range channels {
		ch := ch
		cancels = append(cancels, ev.On(ch, func(data ...interface{}) {
			m, err := NewMessage(ch, kind, payloadOf(data))
			if err != nil {
				log.Warn("dropping UI event", zap.String("channel", ch), zap.Error(err))
				return
			}
			router.Dispatch(m)
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// BridgeClient forwards UI events on channels to the host and emits every
// host message without its own client handler to the UI.
func BridgeClient(ev Events, c *Client, channels []string) func() {
	cancels := make([]func(), 0, len(channels))
	for _, ch := range channels {
		ch := ch
		cancels = append(cancels, ev.On(ch, func(data ...interface{}) {
			if err := c.Send(ch, payloadOf(data)); err != nil {
				c.log.Warn("failed to forward UI event", zap.String("channel", ch), zap.Error(err))
			}
		}))
	}

	c.HandleAll(func(m Message) {
		EmitMessage(ev, m)
	})

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// EmitMessage emits m to the UI with its payload decoded
func EmitMessage(ev Events, m Message) {
	if len(m.Payload) == 0 {
		ev.Emit(m.Channel)
		return
	}
	var v interface{}
	if err := json.Unmarshal(m.Payload, &v); err != nil {
		ev.Emit(m.Channel, string(m.Payload))
		return
	}
	ev.Emit(m.Channel, v)
}
