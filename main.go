package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"desk-overlay/frontend"
	"desk-overlay/internal/bus"
	"desk-overlay/internal/config"
	"desk-overlay/internal/host"
	"desk-overlay/internal/hotkey"
	"desk-overlay/internal/logging"
	"desk-overlay/internal/mode"
	"desk-overlay/internal/native"
	"desk-overlay/internal/overlay"
	"desk-overlay/internal/position"
	"desk-overlay/internal/window"
)

// App struct
type App struct {
	ctx  context.Context
	dir  string
	opts config.Options
	log  *zap.Logger

	settings *config.Service
	host     *host.Host
	server   *bus.Server
	main     *window.Window
	surface  *window.WailsSurface
	hotkey   hotkey.Hotkey
	unbridge func()
}

// NewApp creates a new App application struct
func NewApp(dir string, opts config.Options, log *zap.Logger) *App {
	return &App{dir: dir, opts: opts, log: log}
}

// OnStartup is called when the app starts up
func (a *App) OnStartup(ctx context.Context) {
	a.ctx = ctx

	settings, err := config.New(a.dir, a.log)
	if err != nil {
		a.log.Fatal("failed to initialize settings", zap.Error(err))
	}
	a.settings = settings

	positions, err := position.Open(a.dir, a.opts.PositionSaveDelay, a.log)
	if err != nil {
		a.log.Fatal("failed to initialize position store", zap.Error(err))
	}

	// Without a native backend windows still work, minus the z-order tricks
	ops, err := native.New()
	if err != nil {
		a.log.Warn("native window backend unavailable", zap.Error(err))
		ops = nil
	}

	driver, err := host.NewDriver(a.opts, ops, a.log)
	if err != nil {
		a.log.Fatal("failed to initialize z-order driver", zap.Error(err))
	}
	display := host.DisplayFunc(ops, a.log)

	factory := &window.Factory{
		Ops:      ops,
		Launcher: window.ExecLauncher{Binary: widgetBinary(a.opts)},
		Logger:   a.log,
	}

	h, err := host.New(host.Config{
		Options:   a.opts,
		Settings:  settings,
		Positions: positions,
		Driver:    driver,
		Factory:   factory,
		Display:   display,
		Quit:      func() { wailsruntime.Quit(ctx) },
		Logger:    a.log,
	})
	if err != nil {
		a.log.Fatal("failed to initialize host", zap.Error(err))
	}
	a.host = h

	a.server = bus.NewServer(h.Router(), a.log)
	if err := a.server.Start(a.opts.BusAddr); err != nil {
		a.log.Fatal("failed to start bus", zap.Error(err))
	}
	a.server.OnConnect(h.WidgetConnected)

	factory.Bus = a.server
	factory.BusAddr = a.server.Addr
	factory.Token = a.server.Token()
	factory.Gone = h.WidgetGone
	// a widget that lost its socket is killed and then forgotten through Gone
	a.server.OnDisconnect(factory.Dropped)

	a.surface = window.NewWailsSurface(ctx)
	a.main = window.New(overlay.Descriptors()[overlay.KindMain], ops, a.surface, overlay.Position{}, display(), a.log)
	a.main.SetPosition(overlay.Position{})
	a.main.SetContentSize(display())
	a.main.Watch(nil)

	a.unbridge = bus.BridgeRouter(bus.NewWailsEvents(ctx), h.Router(), overlay.KindMain, host.UIChannels(), a.log)

	if accel, err := hotkey.Parse(a.opts.Hotkey); err != nil {
		a.log.Warn("invalid hotkey", zap.String("hotkey", a.opts.Hotkey), zap.Error(err))
	} else if hk, err := hotkey.Register(accel, h.ToggleEdit, a.log); err != nil {
		// the control window still toggles the mode
		a.log.Warn("failed to register hotkey", zap.String("hotkey", accel.String()), zap.Error(err))
	} else {
		a.hotkey = hk
	}

	if err := h.Start(ctx, a.main); err != nil {
		a.log.Fatal("failed to start host", zap.Error(err))
	}
}

// OnShutdown is called when the app is shutting down
func (a *App) OnShutdown(ctx context.Context) {
	if a.hotkey != nil {
		if err := a.hotkey.Close(); err != nil {
			a.log.Warn("failed to unregister hotkey", zap.Error(err))
		}
	}
	if a.unbridge != nil {
		a.unbridge()
	}
	if a.host != nil {
		a.host.Shutdown()
	}
	if a.surface != nil {
		a.surface.Shutdown()
	}
	if a.server != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Close(closeCtx); err != nil {
			a.log.Warn("failed to close bus", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// Frontend API methods (these will be exposed to the frontend)

// GetSettings returns the current global settings
func (a *App) GetSettings() config.GlobalSettings {
	if a.settings == nil {
		return config.GlobalSettings{}
	}
	return a.settings.Get()
}

// IsEditing reports whether the overlay is in edit mode
func (a *App) IsEditing() bool {
	if a.host == nil {
		return false
	}
	return a.host.Machine().Current() == mode.Edit
}

// ToggleEdit flips between desktop and edit mode
func (a *App) ToggleEdit() {
	if a.host != nil {
		a.host.ToggleEdit()
	}
}

// GetWindows returns a snapshot of every open overlay window
func (a *App) GetWindows() []overlay.State {
	if a.host == nil {
		return nil
	}
	return a.host.Registry().Snapshots()
}

// IsOverlayFocused checks if the main overlay window currently has focus
func (a *App) IsOverlayFocused() bool {
	if a.main == nil {
		return false
	}
	return a.main.IsFocused()
}

// widgetBinary returns the widget executable, by default the one shipped
// next to the host binary.
func widgetBinary(opts config.Options) string {
	if opts.WidgetBinary != "" {
		return opts.WidgetBinary
	}
	name := "desk-overlay-widget"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

func main() {
	dir, err := config.DefaultDir()
	if err != nil {
		fmt.Printf("Failed to resolve config directory: %v\n", err)
		os.Exit(1)
	}

	opts, err := config.LoadOptions(dir)
	if err != nil {
		fmt.Printf("Failed to load options: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Level: opts.LogLevel, Development: opts.LogDevelopment})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Create an instance of the app structure
	app := NewApp(dir, opts, log)

	appOptions := &options.App{
		Title:  overlay.AppTitle,
		Width:  1920,
		Height: 1080,
		AssetServer: &assetserver.Options{
			Assets: frontend.Assets,
		},
		Frameless:        true,
		BackgroundColour: &options.RGBA{R: 0, G: 0, B: 0, A: 0}, // Transparent
		Logger:           logging.NewWails(log),
		OnStartup:        app.OnStartup,
		OnShutdown:       app.OnShutdown,
		Bind:             []interface{}{app},
	}
	platformOptions(appOptions)

	if err := wails.Run(appOptions); err != nil {
		fmt.Printf("Error starting application: %v\n", err)
		os.Exit(1)
	}
}
