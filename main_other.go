//go:build !windows

package main

import (
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
)

// platformOptions asks the compositor for an RGBA visual
func platformOptions(app *options.App) {
	app.Linux = &linux.Options{
		WindowIsTranslucent: true,
		ProgramName:         "desk-overlay",
	}
}
