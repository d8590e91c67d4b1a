// Package zorder pushes overlay windows to the bottom of the stacking order
// and toggles their input passthrough.
package zorder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// PassthroughOptions tunes SetInputPassthrough
type PassthroughOptions struct {
	// Forward keeps pointer moves flowing to the window so it can still
	// set the cursor shape while clicks fall through.
	Forward bool
}

// Driver is the platform primitive behind desktop-level pinning.
//
// SendToBottom never fails loudly: every error degrades to the fallback
// path and the boolean only reports whether a strategy completed.
type Driver interface {
	SendToBottom(ctx context.Context, w overlay.Window) bool
	SetInputPassthrough(w overlay.Window, enabled bool, opts PassthroughOptions)
}

// Strategy selects how SendToBottom reaches the window manager
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyScript   Strategy = "script"
	StrategyNative   Strategy = "native"
	StrategyFallback Strategy = "fallback"
)

// DefaultHelperTimeout bounds one helper-process invocation
const DefaultHelperTimeout = 5 * time.Second

// Config wires a driver
type Config struct {
	Strategy Strategy
	// GOOS is the platform family; empty means runtime.GOOS.
	GOOS    string
	Timeout time.Duration
	Helper  Helper
	Runner  Runner
	Stack   StackOps
	// Schedule runs fn after d; defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
	Logger   *zap.Logger
}

// Resolve maps auto to the strategy used on goos
func Resolve(s Strategy, goos string) Strategy {
	if s != "" && s != StrategyAuto {
		return s
	}
	switch goos {
	case "windows":
		return StrategyScript
	case "linux", "freebsd", "openbsd", "netbsd":
		return StrategyNative
	default:
		return StrategyFallback
	}
}

// New builds the driver selected by cfg
func New(cfg Config) (Driver, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("zorder")

	goos := cfg.GOOS
	if goos == "" {
		goos = currentGOOS
	}
	fallback := NewFallback(goos, cfg.Schedule, log)

	switch strategy := Resolve(cfg.Strategy, goos); strategy {
	case StrategyScript:
		runner := cfg.Runner
		if runner == nil {
			runner = ExecRunner{}
		}
		return NewScripted(runner, cfg.Helper, cfg.Timeout, fallback, log), nil
	case StrategyNative:
		if cfg.Stack == nil {
			return nil, fmt.Errorf("native strategy needs stacking primitives")
		}
		return NewNative(cfg.Stack, fallback, log), nil
	case StrategyFallback:
		return fallback, nil
	default:
		return nil, fmt.Errorf("unknown z-order strategy %q", strategy)
	}
}

func live(w overlay.Window) bool {
	return w != nil && !w.IsDestroyed()
}

func setPassthrough(w overlay.Window, enabled bool, opts PassthroughOptions) {
	if !live(w) {
		return
	}
	w.SetIgnoreMouseEvents(enabled, enabled && opts.Forward)
}
