//go:build windows

package main

import (
	"github.com/wailsapp/wails/v2/pkg/options"
	wailswindows "github.com/wailsapp/wails/v2/pkg/options/windows"
)

// platformOptions makes the webview see-through so only widgets are drawn
func platformOptions(app *options.App) {
	app.Windows = &wailswindows.Options{
		WebviewIsTransparent: true,
		WindowIsTranslucent:  false,
		DisableWindowIcon:    true,
	}
}
