package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Handler processes one message on the control loop
type Handler func(m Message)

// Router maps channels to handlers and runs them on the control loop
type Router struct {
	post func(func()) bool
	log  *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates a router that schedules handlers with post
func NewRouter(post func(func()) bool, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		post:     post,
		log:      log.Named("router"),
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for channel, replacing any previous handler
func (r *Router) Handle(channel string, h Handler) {
	r.mu.Lock()
	r.handlers[channel] = h
	r.mu.Unlock()
}

// Channels returns every registered channel
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for ch := range r.handlers {
		out = append(out, ch)
	}
	return out
}

// Dispatch schedules the handler for m. It returns false when no handler
// is registered or the loop has stopped.
func (r *Router) Dispatch(m Message) bool {
	r.mu.RLock()
	h, ok := r.handlers[m.Channel]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("no handler for channel", zap.String("channel", m.Channel), zap.String("kind", string(m.Kind)))
		return false
	}
	return r.post(func() { h(m) })
}
