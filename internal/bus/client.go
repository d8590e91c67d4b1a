package bus

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// Client is the widget side of the bus
type Client struct {
	kind overlay.Kind
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// Dial connects to the host bus at addr as the widget of the given kind.
// session is the id the host handed to this launch, empty if none.
func Dial(ctx context.Context, addr, token, session string, kind overlay.Kind, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     Path,
		RawQuery: url.Values{"kind": {string(kind)}, "token": {token}, "session": {session}}.Encode(),
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial bus: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial bus: %w", err)
	}

	return &Client{
		kind:     kind,
		conn:     conn,
		log:      log.Named("bus-client").With(zap.String("kind", string(kind))),
		handlers: make(map[string]Handler),
	}, nil
}

// Kind returns the widget kind this client speaks for
func (c *Client) Kind() overlay.Kind { return c.kind }

// Handle registers h for messages on channel
func (c *Client) Handle(channel string, h Handler) {
	c.mu.Lock()
	c.handlers[channel] = h
	c.mu.Unlock()
}

// HandleAll registers h for channels without their own handler
func (c *Client) HandleAll(h Handler) {
	c.mu.Lock()
	c.fallback = h
	c.mu.Unlock()
}

// Send delivers a message to the host
func (c *Client) Send(channel string, payload interface{}) error {
	m, err := NewMessage(channel, c.kind, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("failed to send %s: %w", channel, err)
	}
	return nil
}

// Run reads messages until the connection closes or ctx is done. Handlers
// run on the reading goroutine.
func (c *Client) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("bus read failed: %w", err)
		}

		c.mu.RLock()
		h, ok := c.handlers[m.Channel]
		if !ok {
			h = c.fallback
		}
		c.mu.RUnlock()

		if h == nil {
			c.log.Debug("no handler for channel", zap.String("channel", m.Channel))
			continue
		}
		h(m)
	}
}

// Close sends a close frame and drops the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
