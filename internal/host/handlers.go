package host

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/bus"
	"desk-overlay/internal/config"
	"desk-overlay/internal/mode"
	"desk-overlay/internal/overlay"
)

// UIChannels lists every channel a webview may send to the host
func UIChannels() []string {
	channels := []string{
		bus.ChannelToggleEdit,
		bus.ChannelCloseApp,
		bus.ChannelUpdateSettings,
		bus.ChannelUpdateMainWindow,
		bus.ChannelUpdateNoteStyles,
		bus.ChannelResizeControl,
		bus.ChannelWindowFocus,
		bus.ChannelWindowBlur,
		bus.ChannelWindowMoved,
	}
	for _, d := range overlay.Descriptors() {
		if !d.Lazy {
			continue
		}
		channels = append(channels,
			bus.OpenChannel(d.IPCName),
			bus.CloseChannel(d.IPCName),
			bus.ResizeChannel(d.IPCName))
		if d.SettingsKey != "" {
			channels = append(channels, updateSectionChannel(d.SettingsKey))
		}
	}
	return channels
}

func updateSectionChannel(key string) string {
	return "update-" + key + "-settings"
}

func (h *Host) registerHandlers() {
	r := h.router

	r.Handle(bus.ChannelToggleEdit, h.handleToggleEdit)
	r.Handle(bus.ChannelCloseApp, h.handleCloseApp)
	r.Handle(bus.ChannelUpdateSettings, h.handleUpdateSettings)
	r.Handle(bus.ChannelUpdateMainWindow, h.handleUpdateMainWindow)
	r.Handle(bus.ChannelUpdateNoteStyles, h.handleUpdateNoteStyles)
	r.Handle(bus.ChannelResizeControl, func(m bus.Message) {
		h.resize(overlay.KindControl, m)
	})
	r.Handle(bus.ChannelWindowFocus, h.handleFocus)
	r.Handle(bus.ChannelWindowBlur, h.handleBlur)
	r.Handle(bus.ChannelWindowMoved, h.handleMoved)

	for kind, d := range overlay.Descriptors() {
		if !d.Lazy {
			continue
		}
		kind := kind
		r.Handle(bus.OpenChannel(d.IPCName), func(bus.Message) {
			if _, err := h.registry.Open(context.Background(), kind); err != nil {
				h.log.Error("failed to open window", zap.String("kind", string(kind)), zap.Error(err))
			}
		})
		r.Handle(bus.CloseChannel(d.IPCName), func(bus.Message) {
			h.registry.Close(kind)
		})
		r.Handle(bus.ResizeChannel(d.IPCName), func(m bus.Message) {
			h.resize(kind, m)
		})
		if key := d.SettingsKey; key != "" {
			r.Handle(updateSectionChannel(key), func(m bus.Message) {
				h.handleUpdateSection(kind, key, m)
			})
		}
	}
}

// handleToggleEdit sets the mode from a boolean payload, or flips it when
// the payload is missing or null.
func (h *Host) handleToggleEdit(m bus.Message) {
	var editing *bool
	if err := m.Decode(&editing); err != nil || editing == nil {
		h.machine.Toggle()
		return
	}
	h.machine.Set(*editing)
}

func (h *Host) handleCloseApp(bus.Message) {
	h.log.Info("close requested")
	// Shutdown waits on the loop, so it cannot run inside a handler
	if h.quit != nil {
		go h.quit()
		return
	}
	go h.Shutdown()
}

func (h *Host) handleUpdateSettings(m bus.Message) {
	var settings config.GlobalSettings
	if err := m.Decode(&settings); err != nil {
		h.log.Warn("ignoring malformed settings", zap.String("from", string(m.Kind)), zap.Error(err))
		return
	}
	if err := h.settings.Update(settings); err != nil {
		h.log.Error("failed to save settings", zap.Error(err))
	}

	for key, section := range h.settings.Sections() {
		kind := h.kindForSection(key)
		if w, ok := h.registry.Get(kind); ok {
			w.Send(bus.ApplySettingsChannel(key), section)
		}
	}
	h.applyVisibility(context.Background())
}

// handleUpdateMainWindow accepts either the whole settings object or just
// the notes section.
func (h *Host) handleUpdateMainWindow(m bus.Message) {
	var wrapped struct {
		Notes *config.Section `json:"notesSettings"`
	}
	if err := m.Decode(&wrapped); err != nil {
		h.log.Warn("ignoring malformed notes settings", zap.Error(err))
		return
	}
	notes := wrapped.Notes
	if notes == nil {
		notes = &config.Section{}
		if err := json.Unmarshal(m.Payload, notes); err != nil {
			h.log.Warn("ignoring malformed notes settings", zap.Error(err))
			return
		}
	}

	if err := h.settings.UpdateNotes(*notes); err != nil {
		h.log.Error("failed to save notes settings", zap.Error(err))
	}

	main := h.registry.Main()
	if main == nil {
		return
	}
	main.Send(bus.ApplySettingsChannel(config.SectionNotes), *notes)
	if notes.ToggleShow {
		main.Show()
	} else {
		main.Hide()
	}
}

func (h *Host) handleUpdateNoteStyles(m bus.Message) {
	if main := h.registry.Main(); main != nil {
		main.Send(bus.ChannelApplyNoteStyles, m.Payload)
	}
}

// handleUpdateSection pushes one section of the settings object to the
// window that renders it.
func (h *Host) handleUpdateSection(kind overlay.Kind, key string, m bus.Message) {
	var all map[string]json.RawMessage
	if err := m.Decode(&all); err != nil {
		h.log.Warn("ignoring malformed settings", zap.String("section", key), zap.Error(err))
		return
	}
	payload, ok := all[key+"Settings"]
	if !ok {
		// the payload is the section itself
		payload = m.Payload
	}
	if w, ok := h.registry.Get(kind); ok {
		w.Send(bus.ApplySettingsChannel(key), payload)
	}
}

func (h *Host) resize(kind overlay.Kind, m bus.Message) {
	var size bus.SizePayload
	if err := m.Decode(&size); err != nil {
		h.log.Warn("ignoring malformed resize", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	h.registry.Resize(kind, overlay.Size{Width: size.Width, Height: size.Height})
}

// handleFocus keeps Main at desktop level when it or another overlay
// window takes focus. The control window is exempt so it stays usable.
func (h *Host) handleFocus(m bus.Message) {
	if w, ok := h.registry.Get(m.Kind); ok {
		if f, ok := w.(focusReporter); ok {
			f.SetFocused(true)
		}
	}
	if h.state.Current() != mode.Desktop {
		return
	}

	switch m.Kind {
	case overlay.KindMain:
		if main := h.registry.Main(); main != nil {
			h.ctrl.Lower(main)
		}
		h.pinMainAfter(h.opts.FocusDelay)
	case overlay.KindControl:
	default:
		h.pinMainAfter(h.opts.FocusDelay)
	}
}

func (h *Host) handleBlur(m bus.Message) {
	if w, ok := h.registry.Get(m.Kind); ok {
		if f, ok := w.(focusReporter); ok {
			f.SetFocused(false)
		}
	}
	if m.Kind == overlay.KindMain && h.state.Current() == mode.Desktop {
		h.pinMainAfter(h.opts.BlurDelay)
	}
}

// pinMainAfter re-pins Main once delay has elapsed, if still in Desktop mode
func (h *Host) pinMainAfter(delay time.Duration) {
	h.loop.After(delay, func() {
		if h.state.Current() != mode.Desktop {
			return
		}
		if main := h.registry.Main(); main != nil {
			h.ctrl.Pin(main)
		}
	})
}

func (h *Host) handleMoved(m bus.Message) {
	var pos bus.PositionPayload
	if err := m.Decode(&pos); err != nil {
		h.log.Warn("ignoring malformed move", zap.String("kind", string(m.Kind)), zap.Error(err))
		return
	}
	p := overlay.Position{X: pos.X, Y: pos.Y}
	if w, ok := h.registry.Get(m.Kind); ok {
		if mv, ok := w.(moveReporter); ok {
			mv.Moved(p)
		}
	}
	h.registry.HandleMoved(m.Kind, p)
}

// kindForSection maps a settings key to the window rendering it.
// Sections without their own window go to Main.
func (h *Host) kindForSection(key string) overlay.Kind {
	for kind, d := range overlay.Descriptors() {
		if d.SettingsKey == key {
			return kind
		}
	}
	return overlay.KindMain
}

// applyVisibility opens or closes every lazy desktop widget per its
// toggleShow setting, and shows or hides Main.
func (h *Host) applyVisibility(ctx context.Context) {
	sections := h.settings.Sections()

	if main := h.registry.Main(); main != nil {
		if sections[config.SectionNotes].ToggleShow {
			main.Show()
		} else {
			main.Hide()
		}
	}

	for _, kind := range overlay.Kinds {
		d, _ := h.registry.Descriptor(kind)
		if !d.Lazy || !d.DesktopLevel || d.SettingsKey == "" {
			continue
		}
		section, ok := sections[d.SettingsKey]
		if !ok {
			continue
		}
		_, open := h.registry.Get(kind)
		switch {
		case section.ToggleShow && !open:
			if _, err := h.registry.Open(ctx, kind); err != nil {
				h.log.Error("failed to open window", zap.String("kind", string(kind)), zap.Error(err))
			}
		case !section.ToggleShow && open:
			h.registry.Close(kind)
		}
	}
}
