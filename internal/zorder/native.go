package zorder

import (
	"context"

	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// StackOps are the in-process stacking primitives of a platform
type StackOps interface {
	SetAlwaysOnTop(handle uintptr, onTop bool) error
	Lower(handle uintptr) error
}

// Native restacks windows with direct window-manager calls, without
// spawning a process.
type Native struct {
	ops      StackOps
	fallback *Fallback
	log      *zap.Logger
}

var _ Driver = (*Native)(nil)

// NewNative creates the in-process strategy
func NewNative(ops StackOps, fallback *Fallback, log *zap.Logger) *Native {
	if log == nil {
		log = zap.NewNop()
	}
	return &Native{ops: ops, fallback: fallback, log: log}
}

// SendToBottom implements Driver
func (n *Native) SendToBottom(ctx context.Context, w overlay.Window) bool {
	if !live(w) {
		return false
	}
	kind := zap.String("kind", string(w.Kind()))

	handle, err := w.NativeHandle()
	if err != nil || handle == 0 {
		n.log.Warn("native handle unavailable, using fallback", kind, zap.Error(err))
		return n.fallback.SendToBottom(ctx, w)
	}

	if err := n.ops.SetAlwaysOnTop(handle, false); err != nil {
		n.log.Warn("clear topmost failed, using fallback", kind, zap.Error(err))
		return n.fallback.SendToBottom(ctx, w)
	}
	if err := n.ops.Lower(handle); err != nil {
		n.log.Warn("lower failed, using fallback", kind, zap.Error(err))
		return n.fallback.SendToBottom(ctx, w)
	}
	return true
}

// SetInputPassthrough implements Driver
func (n *Native) SetInputPassthrough(w overlay.Window, enabled bool, opts PassthroughOptions) {
	setPassthrough(w, enabled, opts)
}
