// Package bus carries IPC messages between the host and the UI layer of
// every overlay window.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"desk-overlay/internal/overlay"
)

// ErrClosed is returned when sending on a closed bus
var ErrClosed = errors.New("bus closed")

// ErrStaleSession is returned when sending for a widget launch that has
// since been replaced or disconnected
var ErrStaleSession = errors.New("stale widget session")

// Channels understood by the host
const (
	ChannelToggleEdit       = "toggle-edit"
	ChannelCloseApp         = "close-app"
	ChannelUpdateSettings   = "update-global-settings"
	ChannelUpdateMainWindow = "update-main-Window-state"
	ChannelUpdateNoteStyles = "update-note-styles"
	ChannelResizeControl    = "resize-control"

	ChannelWindowFocus = "window-focus"
	ChannelWindowBlur  = "window-blur"
	ChannelWindowMoved = "window-moved"
)

// Channels sent to the UI layer
const (
	ChannelEditingChanged  = "editing-changed"
	ChannelApplyNoteStyles = "apply-note-styles"

	ChannelSurfacePosition    = "surface-position"
	ChannelSurfaceSize        = "surface-size"
	ChannelSurfaceShow        = "surface-show"
	ChannelSurfaceHide        = "surface-hide"
	ChannelSurfaceClose       = "surface-close"
	ChannelSurfaceAlwaysOnTop = "surface-always-on-top"
)

// OpenChannel returns the open-<name>-window channel
func OpenChannel(ipcName string) string { return "open-" + ipcName + "-window" }

// CloseChannel returns the close-<name>-window channel
func CloseChannel(ipcName string) string { return "close-" + ipcName + "-window" }

// ResizeChannel returns the resize-<name> channel
func ResizeChannel(ipcName string) string { return "resize-" + ipcName }

// ApplySettingsChannel returns the apply-<key>-settings channel
func ApplySettingsChannel(key string) string { return "apply-" + key + "-settings" }

// Message is one IPC message. Kind names the window it came from or goes to.
type Message struct {
	Channel string          `json:"channel"`
	Kind    overlay.Kind    `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message
func NewMessage(channel string, kind overlay.Kind, payload interface{}) (Message, error) {
	m := Message{Channel: channel, Kind: kind}
	if payload == nil {
		return m, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		m.Payload = raw
		return m, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", channel, err)
	}
	m.Payload = data
	return m, nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Channel)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", m.Channel, err)
	}
	return nil
}

// SizePayload is the payload of resize-* and surface-size
type SizePayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PositionPayload is the payload of window-moved and surface-position
type PositionPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}
