package window

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"desk-overlay/internal/bus"
	"desk-overlay/internal/overlay"
)

// closeGrace is how long a widget may take to exit after surface-close
const closeGrace = 3 * time.Second

// Process is a running widget process
type Process interface {
	Wait() error
	Kill() error
}

// Launcher starts widget processes
type Launcher interface {
	Launch(ctx context.Context, args []string) (Process, error)
}

// ExecLauncher runs the widget binary
type ExecLauncher struct {
	Binary string
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error { return p.cmd.Wait() }

func (p execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (l ExecLauncher) Launch(ctx context.Context, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, l.Binary, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", l.Binary, err)
	}
	return execProcess{cmd: cmd}, nil
}

// Sender delivers bus messages to widget processes, one session per launch
type Sender interface {
	Expect(kind overlay.Kind) string
	SendTo(kind overlay.Kind, session, channel string, payload interface{}) error
	SessionConnected(kind overlay.Kind, session string) bool
	Disconnect(kind overlay.Kind, session string)
}

// WidgetArgs builds the command line of a widget process
func WidgetArgs(kind overlay.Kind, busAddr, token, session string, pos overlay.Position, size overlay.Size) []string {
	return []string{
		"-kind", string(kind),
		"-bus", busAddr,
		"-token", token,
		"-session", session,
		"-x", strconv.Itoa(pos.X),
		"-y", strconv.Itoa(pos.Y),
		"-width", strconv.Itoa(size.Width),
		"-height", strconv.Itoa(size.Height),
	}
}

// ProcessSurface is a widget process driven over the bus
type ProcessSurface struct {
	kind    overlay.Kind
	session string
	bus     Sender
	proc    Process
	log     *zap.Logger

	closing atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// StartProcess launches the widget process for kind under a bus session
// obtained from sender.Expect
func StartProcess(ctx context.Context, l Launcher, sender Sender, kind overlay.Kind, session string, args []string, log *zap.Logger) (*ProcessSurface, error) {
	if log == nil {
		log = zap.NewNop()
	}
	proc, err := l.Launch(ctx, args)
	if err != nil {
		sender.Disconnect(kind, session)
		return nil, err
	}

	s := &ProcessSurface{
		kind:    kind,
		session: session,
		bus:     sender,
		proc:    proc,
		log:     log.Named("widget").With(zap.String("kind", string(kind))),
		done:    make(chan struct{}),
	}
	go s.wait()
	return s, nil
}

func (s *ProcessSurface) wait() {
	err := s.proc.Wait()
	if err != nil {
		s.log.Debug("widget process exited", zap.Error(err))
	} else {
		s.log.Debug("widget process exited")
	}
	s.bus.Disconnect(s.kind, s.session)
	s.once.Do(func() { close(s.done) })
}

// Session returns the bus session of this launch
func (s *ProcessSurface) Session() string { return s.session }

func (s *ProcessSurface) Send(channel string, payload interface{}) error {
	return s.bus.SendTo(s.kind, s.session, channel, payload)
}

func (s *ProcessSurface) SetPosition(pos overlay.Position) error {
	return s.Send(bus.ChannelSurfacePosition, bus.PositionPayload{X: pos.X, Y: pos.Y})
}

func (s *ProcessSurface) SetSize(size overlay.Size) error {
	return s.Send(bus.ChannelSurfaceSize, bus.SizePayload{Width: size.Width, Height: size.Height})
}

func (s *ProcessSurface) SetAlwaysOnTop(onTop bool) error {
	return s.Send(bus.ChannelSurfaceAlwaysOnTop, onTop)
}

func (s *ProcessSurface) Show() error {
	return s.Send(bus.ChannelSurfaceShow, nil)
}

func (s *ProcessSurface) Hide() error {
	return s.Send(bus.ChannelSurfaceHide, nil)
}

// Close asks the widget to quit and kills it if it does not exit in time.
// A widget that never connected is killed at once and its queued messages
// are dropped.
func (s *ProcessSurface) Close() error {
	s.closing.Store(true)
	if !s.bus.SessionConnected(s.kind, s.session) {
		s.bus.Disconnect(s.kind, s.session)
		return s.proc.Kill()
	}
	if err := s.Send(bus.ChannelSurfaceClose, nil); err != nil {
		s.log.Debug("surface-close not delivered, killing", zap.Error(err))
		s.bus.Disconnect(s.kind, s.session)
		return s.proc.Kill()
	}
	go func() {
		select {
		case <-s.done:
		case <-time.After(closeGrace):
			s.log.Warn("widget ignored surface-close, killing")
			s.proc.Kill()
		}
	}()
	return nil
}

func (s *ProcessSurface) Done() <-chan struct{} { return s.done }

// dropped handles the loss of the bus connection while the process still
// runs. Such a widget can no longer be driven, so it is killed and
// reported gone through Done.
func (s *ProcessSurface) dropped() {
	if s.closing.Load() {
		return
	}
	s.log.Warn("widget lost its bus connection, killing")
	if err := s.proc.Kill(); err != nil {
		s.log.Debug("failed to kill widget", zap.Error(err))
	}
}
