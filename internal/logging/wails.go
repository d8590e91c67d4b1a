package logging

import (
	"github.com/wailsapp/wails/v2/pkg/logger"
	"go.uber.org/zap"
)

// Wails routes the Wails runtime's own log output into zap
type Wails struct {
	log *zap.Logger
}

var _ logger.Logger = (*Wails)(nil)

// NewWails wraps l for use as options.App.Logger
func NewWails(l *zap.Logger) *Wails {
	return &Wails{log: l.Named("wails").WithOptions(zap.AddCallerSkip(1))}
}

func (w *Wails) Print(message string)   { w.log.Info(message) }
func (w *Wails) Trace(message string)   { w.log.Debug(message) }
func (w *Wails) Debug(message string)   { w.log.Debug(message) }
func (w *Wails) Info(message string)    { w.log.Info(message) }
func (w *Wails) Warning(message string) { w.log.Warn(message) }
func (w *Wails) Error(message string)   { w.log.Error(message) }

// Fatal logs at error level; Wails exits the process itself.
func (w *Wails) Fatal(message string) { w.log.Error(message) }
