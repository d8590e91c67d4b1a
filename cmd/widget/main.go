// Command desk-overlay-widget hosts one auxiliary overlay window. The host
// launches it and drives it over the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"desk-overlay/frontend"
	"desk-overlay/internal/bus"
	"desk-overlay/internal/config"
	"desk-overlay/internal/host"
	"desk-overlay/internal/logging"
	"desk-overlay/internal/overlay"
	"desk-overlay/internal/window"
)

const dialTimeout = 5 * time.Second

// Widget struct
type Widget struct {
	ctx     context.Context
	cancel  context.CancelFunc
	desc    overlay.Descriptor
	busURL  string
	token   string
	session string
	pos     overlay.Position
	opts    config.Options
	log     *zap.Logger

	client   *bus.Client
	unbridge func()
}

// OnStartup is called when the app starts up
func (w *Widget) OnStartup(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	runtime.WindowSetPosition(ctx, w.pos.X, w.pos.Y)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := bus.Dial(dialCtx, w.busURL, w.token, w.session, w.desc.Kind, w.log)
	if err != nil {
		// a widget without its host has nothing to show
		w.log.Error("failed to reach host", zap.Error(err))
		runtime.Quit(ctx)
		return
	}
	w.client = client

	w.handleSurface(ctx)
	w.unbridge = bus.BridgeClient(bus.NewWailsEvents(ctx), client, host.UIChannels())

	// drags happen in the webview, so the host only learns of them here
	surface := window.NewWailsSurface(ctx)
	go window.PollPosition(w.ctx, w.opts.MovePollInterval, surface, w.reportMove)

	go func() {
		if err := client.Run(w.ctx); err != nil && w.ctx.Err() == nil {
			w.log.Warn("bus connection lost", zap.Error(err))
		}
		runtime.Quit(ctx)
	}()
}

func (w *Widget) reportMove(pos overlay.Position) {
	if err := w.client.Send(bus.ChannelWindowMoved, bus.PositionPayload{X: pos.X, Y: pos.Y}); err != nil {
		w.log.Debug("failed to report move", zap.Error(err))
	}
}

// handleSurface applies the window operations requested by the host
func (w *Widget) handleSurface(ctx context.Context) {
	c := w.client

	c.Handle(bus.ChannelSurfacePosition, func(m bus.Message) {
		var pos bus.PositionPayload
		if err := m.Decode(&pos); err != nil {
			w.log.Warn("ignoring malformed position", zap.Error(err))
			return
		}
		runtime.WindowSetPosition(ctx, pos.X, pos.Y)
	})
	c.Handle(bus.ChannelSurfaceSize, func(m bus.Message) {
		var size bus.SizePayload
		if err := m.Decode(&size); err != nil {
			w.log.Warn("ignoring malformed size", zap.Error(err))
			return
		}
		runtime.WindowSetSize(ctx, size.Width, size.Height)
	})
	c.Handle(bus.ChannelSurfaceAlwaysOnTop, func(m bus.Message) {
		var onTop bool
		if err := m.Decode(&onTop); err != nil {
			w.log.Warn("ignoring malformed always-on-top", zap.Error(err))
			return
		}
		runtime.WindowSetAlwaysOnTop(ctx, onTop)
	})
	c.Handle(bus.ChannelSurfaceShow, func(bus.Message) {
		runtime.WindowShow(ctx)
	})
	c.Handle(bus.ChannelSurfaceHide, func(bus.Message) {
		runtime.WindowHide(ctx)
	})
	c.Handle(bus.ChannelSurfaceClose, func(bus.Message) {
		runtime.Quit(ctx)
	})
}

// OnShutdown is called when the app is shutting down
func (w *Widget) OnShutdown(ctx context.Context) {
	if w.unbridge != nil {
		w.unbridge()
	}
	if w.client != nil {
		w.client.Close()
	}
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.log.Sync()
}

// Frontend API methods (these will be exposed to the frontend)

// Kind returns the widget kind, which selects the view to render
func (w *Widget) Kind() string {
	return string(w.desc.Kind)
}

func main() {
	var (
		kind    = flag.String("kind", "", "widget kind")
		busURL  = flag.String("bus", "", "host bus address")
		token   = flag.String("token", "", "bus token")
		session = flag.String("session", "", "bus session of this launch")
		x       = flag.Int("x", 0, "initial x")
		y       = flag.Int("y", 0, "initial y")
		width   = flag.Int("width", 0, "initial width")
		height  = flag.Int("height", 0, "initial height")
	)
	flag.Parse()

	k, err := overlay.ParseKind(*kind)
	if err != nil || k == overlay.KindMain {
		fmt.Printf("Invalid widget kind %q\n", *kind)
		os.Exit(2)
	}
	if *busURL == "" || *token == "" {
		fmt.Println("Missing -bus or -token")
		os.Exit(2)
	}
	desc := overlay.Descriptors()[k]

	opts := config.DefaultOptions()
	if dir, err := config.DefaultDir(); err == nil {
		if loaded, err := config.LoadOptions(dir); err == nil {
			opts = loaded
		}
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = opts.LogLevel
	logCfg.Development = opts.LogDevelopment
	log := logging.NewOrNop(logCfg).With(zap.String("widget", string(k)))

	size := overlay.Size{Width: *width, Height: *height}
	if size.Width <= 0 || size.Height <= 0 {
		size = desc.DefaultSize
	}

	widget := &Widget{
		desc:    desc,
		busURL:  *busURL,
		token:   *token,
		session: *session,
		pos:     overlay.Position{X: *x, Y: *y},
		opts:    opts,
		log:     log,
	}

	appOptions := &options.App{
		Title:  desc.Title,
		Width:  size.Width,
		Height: size.Height,
		AssetServer: &assetserver.Options{
			Assets: frontend.Assets,
		},
		Frameless:        true,
		DisableResize:    true,
		BackgroundColour: &options.RGBA{R: 0, G: 0, B: 0, A: 0}, // Transparent
		Logger:           logging.NewWails(log),
		OnStartup:        widget.OnStartup,
		OnShutdown:       widget.OnShutdown,
		Bind:             []interface{}{widget},
	}
	platformOptions(appOptions)

	if err := wails.Run(appOptions); err != nil {
		fmt.Printf("Error starting widget: %v\n", err)
		os.Exit(1)
	}
}
